package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docqahq/docqa/internal/model"
	appErr "github.com/docqahq/docqa/internal/pkg/errors"
	"github.com/docqahq/docqa/internal/vectorstore"
)

func point(id, tenantID, documentID, text string, vector []float32) model.IndexedPoint {
	return model.IndexedPoint{
		ID:     id,
		Vector: vector,
		Payload: map[string]interface{}{
			model.PayloadTenantID:   tenantID,
			model.PayloadDocumentID: documentID,
			model.PayloadText:       text,
		},
	}
}

func TestSearch_TenantIsolation(t *testing.T) {
	store := NewStore(3)
	require.NoError(t, store.Init(context.Background()))
	require.NoError(t, store.BatchUpsert(context.Background(), []model.IndexedPoint{
		point("a1", "tenant-a", "doc-1", "alpha", []float32{1, 0, 0}),
		point("b1", "tenant-b", "doc-2", "bravo", []float32{1, 0, 0}),
		point("a2", "tenant-a", "doc-1", "charlie", []float32{0, 1, 0}),
	}))

	hits, err := store.Search(context.Background(), []float32{1, 0, 0}, "tenant-a", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, hit := range hits {
		require.Equal(t, "tenant-a", hit.Point.TenantID())
	}
	// Identical vector ranks first with cosine similarity near 1.
	require.Equal(t, "alpha", hits[0].Point.Text())
	require.InDelta(t, 1.0, float64(hits[0].Score), 1e-6)
}

func TestSearch_EmptyTenantSeesNothing(t *testing.T) {
	store := NewStore(2)
	require.NoError(t, store.Upsert(context.Background(), point("a1", "tenant-a", "doc-1", "alpha", []float32{1, 0})))

	hits, err := store.Search(context.Background(), []float32{1, 0}, "", 10, nil)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestSearch_ExtraFilterConjunctive(t *testing.T) {
	store := NewStore(2)
	require.NoError(t, store.BatchUpsert(context.Background(), []model.IndexedPoint{
		point("a1", "tenant-a", "doc-1", "alpha", []float32{1, 0}),
		point("a2", "tenant-a", "doc-2", "bravo", []float32{1, 0}),
	}))

	hits, err := store.Search(context.Background(), []float32{1, 0}, "tenant-a", 10, vectorstore.Filter{
		model.PayloadDocumentID: "doc-2",
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "bravo", hits[0].Point.Text())
}

func TestSearch_HitsOmitVectors(t *testing.T) {
	store := NewStore(2)
	require.NoError(t, store.Upsert(context.Background(), point("a1", "tenant-a", "doc-1", "alpha", []float32{1, 0})))

	hits, err := store.Search(context.Background(), []float32{1, 0}, "tenant-a", 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Nil(t, hits[0].Point.Vector)
}

func TestBatchUpsert_RejectsWholeBatchOnBadPoint(t *testing.T) {
	store := NewStore(3)
	err := store.BatchUpsert(context.Background(), []model.IndexedPoint{
		point("a1", "tenant-a", "doc-1", "alpha", []float32{1, 0, 0}),
		point("a2", "tenant-a", "doc-1", "bravo", []float32{1, 0}), // wrong dimension
	})
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)

	count, err := store.Count(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestBatchUpsert_RejectsMissingTenant(t *testing.T) {
	store := NewStore(2)
	err := store.Upsert(context.Background(), model.IndexedPoint{
		ID:      "a1",
		Vector:  []float32{1, 0},
		Payload: map[string]interface{}{model.PayloadText: "orphan"},
	})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestUpsert_SameIDOverwrites(t *testing.T) {
	store := NewStore(2)
	require.NoError(t, store.Upsert(context.Background(), point("a1", "tenant-a", "doc-1", "old", []float32{1, 0})))
	require.NoError(t, store.Upsert(context.Background(), point("a1", "tenant-a", "doc-1", "new", []float32{1, 0})))

	count, err := store.Count(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	hits, err := store.Search(context.Background(), []float32{1, 0}, "tenant-a", 10, nil)
	require.NoError(t, err)
	require.Equal(t, "new", hits[0].Point.Text())
}

func TestDeleteByFilter_RemovesAndIsIdempotent(t *testing.T) {
	store := NewStore(2)
	require.NoError(t, store.BatchUpsert(context.Background(), []model.IndexedPoint{
		point("a1", "tenant-a", "doc-1", "alpha", []float32{1, 0}),
		point("a2", "tenant-a", "doc-2", "bravo", []float32{0, 1}),
		point("b1", "tenant-b", "doc-1", "charlie", []float32{1, 0}),
	}))

	filter := vectorstore.Filter{
		model.PayloadTenantID:   "tenant-a",
		model.PayloadDocumentID: "doc-1",
	}
	removed, err := store.DeleteByFilter(context.Background(), filter)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	removed, err = store.DeleteByFilter(context.Background(), filter)
	require.NoError(t, err)
	require.Zero(t, removed)

	// The other tenant's doc-1 point survives.
	count, err := store.Count(context.Background(), "tenant-b")
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestSearch_WrongQueryDimensionRejected(t *testing.T) {
	store := NewStore(3)
	_, err := store.Search(context.Background(), []float32{1, 0}, "tenant-a", 10, nil)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
}

func TestSearch_TopKClamped(t *testing.T) {
	store := NewStore(1)
	for i := 0; i < 30; i++ {
		require.NoError(t, store.Upsert(context.Background(), point(
			string(rune('a'+i)), "tenant-a", "doc-1", "text", []float32{1},
		)))
	}
	hits, err := store.Search(context.Background(), []float32{1}, "tenant-a", 500, nil)
	require.NoError(t, err)
	require.Len(t, hits, vectorstore.MaxTopK)
}
