package vectorstore

import (
	"context"
	"fmt"

	"github.com/docqahq/docqa/internal/model"
	appErr "github.com/docqahq/docqa/internal/pkg/errors"
)

// Filter is a set of equality conditions on payload fields. All
// conditions are conjunctive.
type Filter map[string]interface{}

// TopK bounds. Direct search callers get up to MaxTopK results; chat
// context retrieval is capped lower to bound prompt size.
const (
	DefaultTopK = 5
	MaxTopK     = 20
	MaxChatTopK = 10
)

func ClampTopK(topK, cap int) int {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if cap > 0 && topK > cap {
		topK = cap
	}
	return topK
}

// Store is the contract every vector backend satisfies. Search adds an
// equality condition on the tenant id as a mandatory conjunct with any
// caller filters; isolation is enforced here, never left to callers.
//
// Search reports transport failures as an error wrapping
// ErrSearchFailed; an empty hit slice with a nil error means the
// tenant genuinely has no matches. Callers must not conflate the two.
type Store interface {
	Init(ctx context.Context) error
	Upsert(ctx context.Context, point model.IndexedPoint) error
	BatchUpsert(ctx context.Context, points []model.IndexedPoint) error
	Search(ctx context.Context, queryVector []float32, tenantID string, topK int, extra Filter) ([]model.SearchHit, error)
	DeleteByFilter(ctx context.Context, filter Filter) (int64, error)
	Count(ctx context.Context, tenantID string) (int64, error)
}

// ValidatePoint checks the dimension and tenant invariants enforced
// before any write.
func ValidatePoint(point model.IndexedPoint, dimension int) error {
	if len(point.Vector) != dimension {
		return fmt.Errorf("%w: point %s has %d values, want %d", appErr.ErrDimensionMismatch, point.ID, len(point.Vector), dimension)
	}
	if point.TenantID() == "" {
		return fmt.Errorf("%w: point %s has no tenant id", appErr.ErrInvalid, point.ID)
	}
	return nil
}

// ValidatePoints applies ValidatePoint to the whole batch before any
// write is attempted; a single bad point rejects the batch.
func ValidatePoints(points []model.IndexedPoint, dimension int) error {
	for _, point := range points {
		if err := ValidatePoint(point, dimension); err != nil {
			return err
		}
	}
	return nil
}

func ValidateQueryVector(vector []float32, dimension int) error {
	if len(vector) != dimension {
		return fmt.Errorf("%w: query vector has %d values, want %d", appErr.ErrDimensionMismatch, len(vector), dimension)
	}
	return nil
}
