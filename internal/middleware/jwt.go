package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/docqahq/docqa/internal/pkg/errcode"
	"github.com/docqahq/docqa/internal/pkg/jwt"
	"github.com/docqahq/docqa/internal/pkg/response"
)

const ContextTenantIDKey = "tenant_id"

// JWTAuth verifies the bearer token and stores the tenant identity in
// the request context. Every route behind it is tenant-scoped; the
// tenant id never comes from the request body.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, errcode.ErrUnauthorized, "missing or malformed authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(token, secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextTenantIDKey, claims.TenantID)
		if claims.Email != "" {
			c.Set("user_email", claims.Email)
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
