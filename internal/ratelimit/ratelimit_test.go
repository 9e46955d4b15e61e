package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLimiter(max int, window time.Duration, at time.Time) (*Limiter, *time.Time) {
	now := at
	l := NewLimiter(max, window)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheckAndRecord_DeniesAboveLimit(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter, _ := newTestLimiter(10, time.Hour, base)

	for i := 0; i < 10; i++ {
		ok, retryAfter := limiter.CheckAndRecord("tenant-a|/api/v1/rag/query")
		require.True(t, ok)
		require.Zero(t, retryAfter)
	}

	ok, retryAfter := limiter.CheckAndRecord("tenant-a|/api/v1/rag/query")
	require.False(t, ok)
	require.Greater(t, retryAfter, 0)
	require.LessOrEqual(t, retryAfter, 3600)

	// Another key is unaffected.
	ok, _ = limiter.CheckAndRecord("tenant-b|/api/v1/rag/query")
	require.True(t, ok)
}

func TestCheckAndRecord_WindowSlides(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter, now := newTestLimiter(2, time.Minute, base)

	require.True(t, first(limiter.CheckAndRecord("k")))
	*now = base.Add(30 * time.Second)
	require.True(t, first(limiter.CheckAndRecord("k")))

	*now = base.Add(40 * time.Second)
	ok, retryAfter := limiter.CheckAndRecord("k")
	require.False(t, ok)
	// Oldest request leaves the window at base+60s, so 20s remain.
	require.Equal(t, 20, retryAfter)

	*now = base.Add(61 * time.Second)
	require.True(t, first(limiter.CheckAndRecord("k")))
}

func TestCheckAndRecord_RetryAfterAtLeastOne(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter, now := newTestLimiter(1, time.Minute, base)

	require.True(t, first(limiter.CheckAndRecord("k")))
	*now = base.Add(59*time.Second + 900*time.Millisecond)
	ok, retryAfter := limiter.CheckAndRecord("k")
	require.False(t, ok)
	require.Equal(t, 1, retryAfter)
}

func TestReset_ClearsHistory(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter, _ := newTestLimiter(1, time.Hour, base)

	require.True(t, first(limiter.CheckAndRecord("k")))
	require.False(t, first(limiter.CheckAndRecord("k")))
	limiter.Reset("k")
	require.True(t, first(limiter.CheckAndRecord("k")))
}

func TestSweep_RemovesIdleKeys(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter, now := newTestLimiter(5, time.Minute, base)

	limiter.CheckAndRecord("stale")
	*now = base.Add(30 * time.Second)
	limiter.CheckAndRecord("active")
	*now = base.Add(70 * time.Second)

	removed := limiter.Sweep()
	require.Equal(t, 1, removed)
	require.NotContains(t, limiter.history, "stale")
	require.Contains(t, limiter.history, "active")
}

func TestCheckAndRecord_ConcurrentAdmissions(t *testing.T) {
	limiter := NewLimiter(10, time.Hour)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _ := limiter.CheckAndRecord("k")
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 10, allowed)
}

func first(ok bool, _ int) bool { return ok }
