package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docqahq/docqa/internal/middleware"
	"github.com/docqahq/docqa/internal/pkg/errcode"
	appErr "github.com/docqahq/docqa/internal/pkg/errors"
	"github.com/docqahq/docqa/internal/pkg/response"
)

func getTenantID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextTenantIDKey)
	tenantID, _ := value.(string)
	return tenantID
}

// handleError maps pipeline errors to stable client codes. Wrapped
// downstream text is logged but never echoed back to clients.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("tenant_id", getTenantID(c)),
		zap.Error(err),
	)
	if rl, ok := appErr.AsRateLimited(err); ok {
		response.RateLimited(c, errcode.ErrTooMany, rl.RetryAfterSeconds)
		return
	}
	switch {
	case errors.Is(err, appErr.ErrEmptyInput), errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrEmbeddingUnavailable), errors.Is(err, appErr.ErrDimensionMismatch):
		response.Error(c, errcode.ErrEmbeddingUnavailable, "embedding unavailable")
	case errors.Is(err, appErr.ErrSearchFailed):
		response.Error(c, errcode.ErrSearchFailed, "search failed")
	case errors.Is(err, appErr.ErrGenerationFailed):
		response.Error(c, errcode.ErrGenerationFailed, "generation failed")
	case errors.Is(err, appErr.ErrPartialIngest):
		response.Error(c, errcode.ErrIngestFailed, "ingest incomplete")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
