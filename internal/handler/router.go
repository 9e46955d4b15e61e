package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/docqahq/docqa/internal/middleware"
	"github.com/docqahq/docqa/internal/ratelimit"
)

type RouterDeps struct {
	Rag       *RagHandler
	Limiter   *ratelimit.Limiter
	JWTSecret []byte
}

// RegisterRoutes mounts the API. Auth runs before the rate limiter so
// throttling keys on the tenant, not the client address.
func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))
	authGroup.Use(middleware.RateLimit(deps.Limiter))

	authGroup.POST("/rag/query", deps.Rag.Query)
	authGroup.POST("/rag/ingest", deps.Rag.Ingest)
	authGroup.DELETE("/rag/documents/:id", deps.Rag.Delete)
	authGroup.GET("/rag/stats", deps.Rag.Stats)
}
