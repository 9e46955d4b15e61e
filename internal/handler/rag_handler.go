package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/docqahq/docqa/internal/model"
	"github.com/docqahq/docqa/internal/pkg/errcode"
	"github.com/docqahq/docqa/internal/pkg/response"
	"github.com/docqahq/docqa/internal/service"
)

type RagHandler struct {
	rag *service.RagService
}

func NewRagHandler(rag *service.RagService) *RagHandler {
	return &RagHandler{rag: rag}
}

type ragQueryRequest struct {
	Query   string              `json:"query"`
	TopK    int                 `json:"top_k"`
	History []model.ChatMessage `json:"history"`
}

type ragIngestRequest struct {
	DocumentID string                 `json:"document_id"`
	Title      string                 `json:"title"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata"`
}

func (h *RagHandler) Query(c *gin.Context) {
	var req ragQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.rag.QueryRag(c.Request.Context(), req.Query, getTenantID(c), req.TopK, req.History)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *RagHandler) Ingest(c *gin.Context) {
	var req ragIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.rag.IngestDocument(c.Request.Context(), getTenantID(c), req.DocumentID, req.Content, req.Title, req.Metadata)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *RagHandler) Delete(c *gin.Context) {
	documentID := c.Param("id")
	if documentID == "" {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	removed, err := h.rag.DeleteDocument(c.Request.Context(), getTenantID(c), documentID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"document_id": documentID, "points_removed": removed})
}

func (h *RagHandler) Stats(c *gin.Context) {
	stats, err := h.rag.Stats(c.Request.Context(), getTenantID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stats)
}
