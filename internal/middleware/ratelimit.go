package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docqahq/docqa/internal/pkg/errcode"
	"github.com/docqahq/docqa/internal/pkg/response"
	"github.com/docqahq/docqa/internal/ratelimit"
)

// RateLimit bounds request volume per tenant and route over the limiter's
// sliding window. Requests without a tenant in context are keyed by client IP
// so unauthenticated routes are still bounded.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := limitKey(c)
		ok, retryAfter := limiter.CheckAndRecord(key)
		if !ok {
			logutil.GetLogger(c.Request.Context()).Warn("rate limit hit",
				zap.String("key", key),
				zap.Int("retry_after", retryAfter),
			)
			response.RateLimited(c, errcode.ErrTooMany, retryAfter)
			c.Abort()
			return
		}
		c.Next()
	}
}

func limitKey(c *gin.Context) string {
	subject := c.ClientIP()
	if v, ok := c.Get(ContextTenantIDKey); ok {
		if id, ok := v.(string); ok && id != "" {
			subject = id
		}
	}
	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	return subject + "|" + path
}
