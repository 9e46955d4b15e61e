package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docqahq/docqa/internal/ai"
	"github.com/docqahq/docqa/internal/config"
	"github.com/docqahq/docqa/internal/model"
	appErr "github.com/docqahq/docqa/internal/pkg/errors"
	"github.com/docqahq/docqa/internal/repo"
	"github.com/docqahq/docqa/internal/vectorstore"
)

// Embedding task hints passed to providers that distinguish query and
// document embeddings.
const (
	taskTypeQuery    = "RETRIEVAL_QUERY"
	taskTypeDocument = "RETRIEVAL_DOCUMENT"
)

type RagOptions struct {
	TopK            int
	EmbedWorkers    int
	HistoryWindow   int
	NoMatchPolicy   string
	FallbackMessage string
	GenTimeout      time.Duration
	VectorTimeout   time.Duration
}

// RagService composes chunking, embedding, vector search and
// generation into the two pipeline entry points. Each query runs its
// steps sequentially; queries run independently of each other, and
// ingestion embeds chunks through a bounded worker pool.
type RagService struct {
	embedder  ai.IEmbedder
	generator ai.IGenerator
	index     vectorstore.Store
	documents *repo.DocumentRepo
	chunker   *ai.Chunker
	opts      RagOptions
}

// NewRagService wires the pipeline. documents may be nil when no
// relational store is configured; metadata bookkeeping is skipped then.
func NewRagService(
	embedder ai.IEmbedder,
	generator ai.IGenerator,
	index vectorstore.Store,
	documents *repo.DocumentRepo,
	chunker *ai.Chunker,
	opts RagOptions,
) *RagService {
	if opts.TopK <= 0 {
		opts.TopK = vectorstore.DefaultTopK
	}
	if opts.EmbedWorkers <= 0 {
		opts.EmbedWorkers = 4
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 4
	}
	if opts.NoMatchPolicy == "" {
		opts.NoMatchPolicy = config.PolicyFallbackMessage
	}
	if opts.GenTimeout <= 0 {
		opts.GenTimeout = 30 * time.Second
	}
	if opts.VectorTimeout <= 0 {
		opts.VectorTimeout = 10 * time.Second
	}
	return &RagService{
		embedder:  embedder,
		generator: generator,
		index:     index,
		documents: documents,
		chunker:   chunker,
		opts:      opts,
	}
}

// QueryRag answers a question from the tenant's indexed corpus. An
// empty hit set is not an error: the configured no-match policy picks
// between the fixed fallback sentence and one ungrounded generation
// call. Failures at any step abort the run with a typed error; the
// service never substitutes synthetic data for a failed step.
func (s *RagService) QueryRag(ctx context.Context, query, tenantID string, topK int, history []model.ChatMessage) (*model.RagResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErr.ErrEmptyInput
	}
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", appErr.ErrInvalid)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("tenant_id", tenantID))

	queryVector, err := s.embedder.Embed(ctx, query, taskTypeQuery)
	if err != nil {
		logger.Error("failed to embed query", zap.Error(err))
		return nil, err
	}

	topK = vectorstore.ClampTopK(topK, vectorstore.MaxChatTopK)
	searchCtx, cancel := context.WithTimeout(ctx, s.opts.VectorTimeout)
	hits, err := s.index.Search(searchCtx, queryVector, tenantID, topK, nil)
	cancel()
	if err != nil {
		logger.Error("vector search failed", zap.Error(err))
		return nil, err
	}

	if len(hits) == 0 {
		logger.Info("no matches for query", zap.String("policy", s.opts.NoMatchPolicy))
		return s.answerWithoutContext(ctx, query, history)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.opts.GenTimeout)
	answer, err := s.generator.Generate(genCtx, buildRagRequest(query, hits, history, s.opts.HistoryWindow))
	cancel()
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", appErr.ErrGenerationFailed, err)
	}

	payloads := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		payloads = append(payloads, hit.Point.Payload)
	}
	logger.Info("rag query answered", zap.Int("sources", len(payloads)))
	return &model.RagResult{
		Answer:      answer,
		Sources:     payloads,
		ContextUsed: payloads,
	}, nil
}

func (s *RagService) answerWithoutContext(ctx context.Context, query string, history []model.ChatMessage) (*model.RagResult, error) {
	if s.opts.NoMatchPolicy == config.PolicyUngrounded {
		genCtx, cancel := context.WithTimeout(ctx, s.opts.GenTimeout)
		defer cancel()
		answer, err := s.generator.Generate(genCtx, buildUngroundedRequest(query, history, s.opts.HistoryWindow))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", appErr.ErrGenerationFailed, err)
		}
		return &model.RagResult{Answer: answer}, nil
	}
	return &model.RagResult{Answer: s.opts.FallbackMessage}, nil
}

// IngestDocument chunks the content, embeds every chunk through the
// bounded worker pool, and writes all points in one bulk upsert. The
// relational metadata row is written first; a vector write failure
// after a successful relational write surfaces as ErrPartialIngest
// rather than being dropped.
func (s *RagService) IngestDocument(ctx context.Context, tenantID, documentID, content, title string, metadata map[string]interface{}) (*model.IngestResult, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", appErr.ErrInvalid)
	}
	if documentID == "" {
		documentID = newDocumentID()
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("tenant_id", tenantID),
		zap.String("document_id", documentID),
	)

	chunks, err := s.chunker.Chunk(ctx, content)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(chunks))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.opts.EmbedWorkers)
	for i, chunk := range chunks {
		eg.Go(func() error {
			vector, err := s.embedder.Embed(egCtx, chunk.Text, taskTypeDocument)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			vectors[i] = vector
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logger.Error("failed to embed document chunks", zap.Error(err))
		return nil, err
	}

	points := make([]model.IndexedPoint, 0, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]interface{}{
			model.PayloadTenantID:    tenantID,
			model.PayloadDocumentID:  documentID,
			model.PayloadChunkIndex:  chunk.Index,
			model.PayloadText:        chunk.Text,
			model.PayloadTitle:       title,
			model.PayloadTotalChunks: chunk.TotalChunks,
		}
		for key, value := range metadata {
			if _, reserved := payload[key]; reserved {
				continue
			}
			payload[key] = value
		}
		points = append(points, model.IndexedPoint{
			ID:      pointID(documentID, chunk.Index),
			Vector:  vectors[i],
			Payload: payload,
		})
	}

	if s.documents != nil {
		now := time.Now().UnixMilli()
		if err := s.documents.Save(ctx, &model.Document{
			ID:          documentID,
			TenantID:    tenantID,
			Title:       title,
			ContentHash: chunks[0].SourceHash,
			ChunkCount:  len(chunks),
			Ctime:       now,
			Mtime:       now,
		}); err != nil {
			logger.Error("failed to save document metadata", zap.Error(err))
			return nil, err
		}
	}

	upsertCtx, cancel := context.WithTimeout(ctx, s.opts.VectorTimeout)
	err = s.index.BatchUpsert(upsertCtx, points)
	cancel()
	if err != nil {
		logger.Error("vector upsert failed after metadata write", zap.Error(err))
		return &model.IngestResult{
				DocumentID:     documentID,
				Chunks:         len(chunks),
				VectorsWritten: false,
			}, fmt.Errorf("%w: %v", appErr.ErrPartialIngest, err)
	}

	logger.Info("document ingested", zap.Int("chunks", len(chunks)))
	return &model.IngestResult{
		DocumentID:     documentID,
		Chunks:         len(chunks),
		VectorsWritten: true,
	}, nil
}

// DeleteDocument removes a document's points and its metadata row.
// Deleting a document that was never ingested is not an error.
func (s *RagService) DeleteDocument(ctx context.Context, tenantID, documentID string) (int64, error) {
	if tenantID == "" || documentID == "" {
		return 0, fmt.Errorf("%w: tenant id and document id are required", appErr.ErrInvalid)
	}
	deleteCtx, cancel := context.WithTimeout(ctx, s.opts.VectorTimeout)
	defer cancel()
	removed, err := s.index.DeleteByFilter(deleteCtx, vectorstore.Filter{
		model.PayloadTenantID:   tenantID,
		model.PayloadDocumentID: documentID,
	})
	if err != nil {
		return 0, err
	}
	if s.documents != nil {
		if err := s.documents.Delete(ctx, tenantID, documentID); err != nil && !errors.Is(err, appErr.ErrNotFound) {
			return removed, err
		}
	}
	logutil.GetLogger(ctx).Info("document deleted",
		zap.String("tenant_id", tenantID),
		zap.String("document_id", documentID),
		zap.Int64("points_removed", removed),
	)
	return removed, nil
}

type TenantStats struct {
	Points    int64 `json:"points"`
	Documents int64 `json:"documents"`
}

func (s *RagService) Stats(ctx context.Context, tenantID string) (*TenantStats, error) {
	countCtx, cancel := context.WithTimeout(ctx, s.opts.VectorTimeout)
	defer cancel()
	points, err := s.index.Count(countCtx, tenantID)
	if err != nil {
		return nil, err
	}
	stats := &TenantStats{Points: points}
	if s.documents != nil && tenantID != "" {
		docs, err := s.documents.CountByTenant(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		stats.Documents = docs
	}
	return stats, nil
}
