package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docqahq/docqa/internal/ratelimit"
)

type RateLimitSweepJob struct {
	limiter *ratelimit.Limiter
}

func NewRateLimitSweepJob(limiter *ratelimit.Limiter) *RateLimitSweepJob {
	return &RateLimitSweepJob{limiter: limiter}
}

func (j *RateLimitSweepJob) Name() string {
	return "ratelimit_sweep"
}

func (j *RateLimitSweepJob) Run(ctx context.Context) error {
	if j.limiter == nil {
		return nil
	}
	removed := j.limiter.Sweep()
	if removed > 0 {
		logutil.GetLogger(ctx).Info("swept idle rate limit keys", zap.Int("removed", removed))
	}
	return nil
}
