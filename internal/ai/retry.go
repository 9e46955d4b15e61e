package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/docqahq/docqa/internal/pkg/errors"
)

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func WrapRetryToEmbedder(e IEmbedder, policy RetryPolicy) IEmbedder {
	if e == nil {
		return nil
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	return &retryEmbedder{next: e, policy: policy}
}

type retryEmbedder struct {
	next   IEmbedder
	policy RetryPolicy
}

// Embed retries the wrapped embedder with exponential backoff. Retries
// live here and only here; search and generation get one attempt per
// orchestration run.
func (r *retryEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	attempt := 0
	var result []float32
	operation := func() error {
		attempt++
		res, err := r.next.Embed(ctx, text, taskType)
		if err != nil {
			logutil.GetLogger(ctx).Warn("embedding attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.policy.MaxAttempts),
				zap.Error(err),
			)
			return err
		}
		result = res
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts-1)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrEmbeddingUnavailable, err)
	}
	return result, nil
}

func (r *retryEmbedder) ModelName() string {
	return r.next.ModelName()
}
