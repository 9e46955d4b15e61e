package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid")
	ErrInternal     = errors.New("internal")

	// Pipeline errors. Callers branch on these; raw downstream service
	// text rides along via wrapping and stays out of client responses.
	ErrEmptyInput           = errors.New("empty input")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrDimensionMismatch    = errors.New("embedding dimension mismatch")
	ErrSearchFailed         = errors.New("vector search failed")
	ErrGenerationFailed     = errors.New("generation failed")
	ErrPartialIngest        = errors.New("partial ingest")
)

// RateLimitedError carries the seconds a caller has to wait before the
// sliding window admits another request.
type RateLimitedError struct {
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfterSeconds)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func AsRateLimited(err error) (*RateLimitedError, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
