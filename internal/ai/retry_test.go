package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appErr "github.com/docqahq/docqa/internal/pkg/errors"
)

type flakyEmbedder struct {
	failures int
	calls    int
	vector   []float32
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("upstream 503")
	}
	return f.vector, nil
}

func (f *flakyEmbedder) ModelName() string { return "flaky" }

func TestRetryEmbedder_SucceedsAfterTransientFailures(t *testing.T) {
	next := &flakyEmbedder{failures: 2, vector: []float32{1, 2, 3}}
	embedder := WrapRetryToEmbedder(next, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	start := time.Now()
	res, err := embedder.Embed(context.Background(), "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, res)
	require.Equal(t, 3, next.calls)
	// Two backoff sleeps: base, then doubled.
	require.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)
}

func TestRetryEmbedder_ExhaustsAttempts(t *testing.T) {
	next := &flakyEmbedder{failures: 10}
	embedder := WrapRetryToEmbedder(next, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond})

	_, err := embedder.Embed(context.Background(), "hello", "RETRIEVAL_QUERY")
	require.ErrorIs(t, err, appErr.ErrEmbeddingUnavailable)
	require.Equal(t, 3, next.calls)
}

func TestRetryEmbedder_NoRetryOnSuccess(t *testing.T) {
	next := &flakyEmbedder{vector: []float32{0.5}}
	embedder := WrapRetryToEmbedder(next, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second})

	start := time.Now()
	_, err := embedder.Embed(context.Background(), "hello", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 1, next.calls)
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetryEmbedder_ContextCancelStopsRetrying(t *testing.T) {
	next := &flakyEmbedder{failures: 10}
	embedder := WrapRetryToEmbedder(next, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := embedder.Embed(ctx, "hello", "RETRIEVAL_QUERY")
	require.Error(t, err)
	require.Equal(t, 1, next.calls)
}

func TestDimensionEmbedder_RejectsWrongSize(t *testing.T) {
	next := &flakyEmbedder{vector: []float32{1, 2, 3}}
	embedder := WrapDimensionCheckToEmbedder(next, 4)

	_, err := embedder.Embed(context.Background(), "hello", "RETRIEVAL_QUERY")
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
}

func TestDimensionEmbedder_PassesMatchingSize(t *testing.T) {
	next := &flakyEmbedder{vector: []float32{1, 2, 3}}
	embedder := WrapDimensionCheckToEmbedder(next, 3)

	res, err := embedder.Embed(context.Background(), "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, res)
	require.Equal(t, "flaky", embedder.ModelName())
}
