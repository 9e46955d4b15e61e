package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docqahq/docqa/internal/ai"
	"github.com/docqahq/docqa/internal/config"
	"github.com/docqahq/docqa/internal/model"
	appErr "github.com/docqahq/docqa/internal/pkg/errors"
	"github.com/docqahq/docqa/internal/vectorstore"
	"github.com/docqahq/docqa/internal/vectorstore/memory"
)

type fakeEmbedder struct {
	mu     sync.Mutex
	calls  int
	vector []float32
	err    error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake" }

type fakeGenerator struct {
	calls   int
	lastReq ai.GenerateRequest
	answer  string
	err     error
}

func (f *fakeGenerator) Generate(ctx context.Context, req ai.GenerateRequest) (string, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// brokenStore fails every operation; used to drive the failure paths.
type brokenStore struct{}

func (brokenStore) Init(ctx context.Context) error { return nil }
func (brokenStore) Upsert(ctx context.Context, point model.IndexedPoint) error {
	return errors.New("store down")
}
func (brokenStore) BatchUpsert(ctx context.Context, points []model.IndexedPoint) error {
	return errors.New("store down")
}
func (brokenStore) Search(ctx context.Context, queryVector []float32, tenantID string, topK int, extra vectorstore.Filter) ([]model.SearchHit, error) {
	return nil, fmt.Errorf("%w: store down", appErr.ErrSearchFailed)
}
func (brokenStore) DeleteByFilter(ctx context.Context, filter vectorstore.Filter) (int64, error) {
	return 0, errors.New("store down")
}
func (brokenStore) Count(ctx context.Context, tenantID string) (int64, error) {
	return 0, errors.New("store down")
}

func newTestService(embedder ai.IEmbedder, generator ai.IGenerator, index vectorstore.Store, opts RagOptions) *RagService {
	return NewRagService(embedder, generator, index, nil, ai.NewChunker(2000, 200), opts)
}

func TestQueryRag_EmptyQueryRejected(t *testing.T) {
	svc := newTestService(&fakeEmbedder{vector: []float32{1, 0}}, &fakeGenerator{}, memory.NewStore(2), RagOptions{})

	_, err := svc.QueryRag(context.Background(), "   ", "tenant-a", 5, nil)
	require.ErrorIs(t, err, appErr.ErrEmptyInput)

	_, err = svc.QueryRag(context.Background(), "valid question", "", 5, nil)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestQueryRag_AnswersFromContext(t *testing.T) {
	index := memory.NewStore(2)
	require.NoError(t, index.Upsert(context.Background(), model.IndexedPoint{
		ID:     "p1",
		Vector: []float32{1, 0},
		Payload: map[string]interface{}{
			model.PayloadTenantID:   "tenant-a",
			model.PayloadDocumentID: "doc-1",
			model.PayloadText:       "Refunds are issued within 14 days.",
		},
	}))
	generator := &fakeGenerator{answer: "Within 14 days."}
	svc := newTestService(&fakeEmbedder{vector: []float32{1, 0}}, generator, index, RagOptions{})

	result, err := svc.QueryRag(context.Background(), "When are refunds issued?", "tenant-a", 5, nil)
	require.NoError(t, err)
	require.Equal(t, "Within 14 days.", result.Answer)
	require.Len(t, result.Sources, 1)
	require.Equal(t, "doc-1", result.Sources[0][model.PayloadDocumentID])
	require.Equal(t, result.Sources, result.ContextUsed)

	require.Equal(t, 1, generator.calls)
	prompt := generator.lastReq.Messages[len(generator.lastReq.Messages)-1].Content
	require.Contains(t, prompt, "Context 1: Refunds are issued within 14 days.")
	require.Contains(t, prompt, "Question: When are refunds issued?")
	require.Contains(t, generator.lastReq.System, "only the provided context")
}

func TestQueryRag_NoMatchFallbackMessage(t *testing.T) {
	generator := &fakeGenerator{answer: "should not be used"}
	svc := newTestService(&fakeEmbedder{vector: []float32{1, 0}}, generator, memory.NewStore(2), RagOptions{
		NoMatchPolicy:   config.PolicyFallbackMessage,
		FallbackMessage: "No answer in the provided data.",
	})

	result, err := svc.QueryRag(context.Background(), "anything", "tenant-a", 5, nil)
	require.NoError(t, err)
	require.Equal(t, "No answer in the provided data.", result.Answer)
	require.Empty(t, result.Sources)
	require.Zero(t, generator.calls)
}

func TestQueryRag_NoMatchUngroundedPolicy(t *testing.T) {
	generator := &fakeGenerator{answer: "General knowledge answer."}
	svc := newTestService(&fakeEmbedder{vector: []float32{1, 0}}, generator, memory.NewStore(2), RagOptions{
		NoMatchPolicy: config.PolicyUngrounded,
	})

	result, err := svc.QueryRag(context.Background(), "anything", "tenant-a", 5, nil)
	require.NoError(t, err)
	require.Equal(t, "General knowledge answer.", result.Answer)
	require.Empty(t, result.Sources)
	require.Equal(t, 1, generator.calls)
	require.Contains(t, generator.lastReq.System, "not grounded")
}

func TestQueryRag_SearchFailureIsNotNoMatch(t *testing.T) {
	generator := &fakeGenerator{answer: "should not be used"}
	svc := newTestService(&fakeEmbedder{vector: []float32{1, 0}}, generator, brokenStore{}, RagOptions{
		NoMatchPolicy:   config.PolicyFallbackMessage,
		FallbackMessage: "fallback",
	})

	_, err := svc.QueryRag(context.Background(), "anything", "tenant-a", 5, nil)
	require.ErrorIs(t, err, appErr.ErrSearchFailed)
	require.Zero(t, generator.calls)
}

func TestQueryRag_EmbedFailureAborts(t *testing.T) {
	svc := newTestService(&fakeEmbedder{err: fmt.Errorf("%w: quota", appErr.ErrEmbeddingUnavailable)}, &fakeGenerator{}, memory.NewStore(2), RagOptions{})

	_, err := svc.QueryRag(context.Background(), "anything", "tenant-a", 5, nil)
	require.ErrorIs(t, err, appErr.ErrEmbeddingUnavailable)
}

func TestQueryRag_GenerationFailure(t *testing.T) {
	index := memory.NewStore(2)
	require.NoError(t, index.Upsert(context.Background(), model.IndexedPoint{
		ID:     "p1",
		Vector: []float32{1, 0},
		Payload: map[string]interface{}{
			model.PayloadTenantID: "tenant-a",
			model.PayloadText:     "some context",
		},
	}))
	svc := newTestService(&fakeEmbedder{vector: []float32{1, 0}}, &fakeGenerator{err: errors.New("model overloaded")}, index, RagOptions{})

	_, err := svc.QueryRag(context.Background(), "anything", "tenant-a", 5, nil)
	require.ErrorIs(t, err, appErr.ErrGenerationFailed)
	// Raw upstream text stays inside the wrap, not in the sentinel.
	require.NotEqual(t, appErr.ErrGenerationFailed.Error(), err.Error())
}

func TestIngestDocument_WritesPointsWithPayload(t *testing.T) {
	index := memory.NewStore(2)
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	svc := newTestService(embedder, &fakeGenerator{}, index, RagOptions{EmbedWorkers: 2})

	result, err := svc.IngestDocument(context.Background(), "tenant-a", "doc-1", "Short content.", "Title", map[string]interface{}{
		"category":            "faq",
		model.PayloadTenantID: "spoofed-tenant",
	})
	require.NoError(t, err)
	require.Equal(t, "doc-1", result.DocumentID)
	require.Equal(t, 1, result.Chunks)
	require.True(t, result.VectorsWritten)
	require.Equal(t, 1, embedder.calls)

	hits, err := index.Search(context.Background(), []float32{1, 0}, "tenant-a", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	payload := hits[0].Point.Payload
	require.Equal(t, "tenant-a", payload[model.PayloadTenantID])
	require.Equal(t, "doc-1", payload[model.PayloadDocumentID])
	require.Equal(t, "Title", payload[model.PayloadTitle])
	require.Equal(t, "faq", payload["category"])
	require.Equal(t, 0, payload[model.PayloadChunkIndex])
	require.Equal(t, 1, payload[model.PayloadTotalChunks])
}

func TestIngestDocument_ReingestOverwritesPoints(t *testing.T) {
	index := memory.NewStore(2)
	svc := newTestService(&fakeEmbedder{vector: []float32{1, 0}}, &fakeGenerator{}, index, RagOptions{})

	_, err := svc.IngestDocument(context.Background(), "tenant-a", "doc-1", "First version.", "T", nil)
	require.NoError(t, err)
	_, err = svc.IngestDocument(context.Background(), "tenant-a", "doc-1", "Second version.", "T", nil)
	require.NoError(t, err)

	count, err := index.Count(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestIngestDocument_GeneratesIDWhenMissing(t *testing.T) {
	svc := newTestService(&fakeEmbedder{vector: []float32{1, 0}}, &fakeGenerator{}, memory.NewStore(2), RagOptions{})

	result, err := svc.IngestDocument(context.Background(), "tenant-a", "", "Some content.", "T", nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.DocumentID)
}

func TestIngestDocument_EmptyContentRejected(t *testing.T) {
	svc := newTestService(&fakeEmbedder{vector: []float32{1, 0}}, &fakeGenerator{}, memory.NewStore(2), RagOptions{})

	_, err := svc.IngestDocument(context.Background(), "tenant-a", "doc-1", "   ", "T", nil)
	require.ErrorIs(t, err, appErr.ErrEmptyInput)
}

func TestIngestDocument_UpsertFailureIsPartial(t *testing.T) {
	svc := newTestService(&fakeEmbedder{vector: []float32{1, 0}}, &fakeGenerator{}, brokenStore{}, RagOptions{})

	result, err := svc.IngestDocument(context.Background(), "tenant-a", "doc-1", "Some content.", "T", nil)
	require.ErrorIs(t, err, appErr.ErrPartialIngest)
	require.NotNil(t, result)
	require.False(t, result.VectorsWritten)
	require.Equal(t, 1, result.Chunks)
}

func TestIngestDocument_EmbedFailureAbortsBeforeWrite(t *testing.T) {
	index := memory.NewStore(2)
	svc := newTestService(&fakeEmbedder{err: errors.New("quota")}, &fakeGenerator{}, index, RagOptions{})

	_, err := svc.IngestDocument(context.Background(), "tenant-a", "doc-1", "Some content.", "T", nil)
	require.Error(t, err)

	count, err := index.Count(context.Background(), "")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestDeleteDocument_RemovesTenantPointsOnly(t *testing.T) {
	index := memory.NewStore(2)
	svc := newTestService(&fakeEmbedder{vector: []float32{1, 0}}, &fakeGenerator{}, index, RagOptions{})

	_, err := svc.IngestDocument(context.Background(), "tenant-a", "doc-1", "Content A.", "T", nil)
	require.NoError(t, err)
	_, err = svc.IngestDocument(context.Background(), "tenant-b", "doc-2", "Content B.", "T", nil)
	require.NoError(t, err)

	removed, err := svc.DeleteDocument(context.Background(), "tenant-a", "doc-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	// Deleting again is a no-op, not an error.
	removed, err = svc.DeleteDocument(context.Background(), "tenant-a", "doc-1")
	require.NoError(t, err)
	require.Zero(t, removed)

	count, err := index.Count(context.Background(), "tenant-b")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestStats_CountsTenantPoints(t *testing.T) {
	index := memory.NewStore(2)
	svc := newTestService(&fakeEmbedder{vector: []float32{1, 0}}, &fakeGenerator{}, index, RagOptions{})

	_, err := svc.IngestDocument(context.Background(), "tenant-a", "doc-1", "Content.", "T", nil)
	require.NoError(t, err)

	stats, err := svc.Stats(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Points)
}

func TestIngestDocument_LongContentParallelEmbed(t *testing.T) {
	index := memory.NewStore(2)
	embedder := &fakeEmbedder{vector: []float32{1, 0}}
	svc := newTestService(embedder, &fakeGenerator{}, index, RagOptions{EmbedWorkers: 4})

	content := strings.Repeat("A sentence that pads the document with text. ", 200)
	result, err := svc.IngestDocument(context.Background(), "tenant-a", "doc-1", content, "T", nil)
	require.NoError(t, err)
	require.Greater(t, result.Chunks, 1)
	require.Equal(t, result.Chunks, embedder.calls)

	count, err := index.Count(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.EqualValues(t, result.Chunks, count)
}
