package pgvec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/docqahq/docqa/internal/pkg/errors"
	"github.com/docqahq/docqa/internal/vectorstore"
)

func TestPayloadKeyExpr(t *testing.T) {
	expr, err := payloadKeyExpr("document_id", 2)
	require.NoError(t, err)
	require.Equal(t, "payload->>'document_id' = $2", expr)

	for _, key := range []string{"", "doc-id", "a' OR '1'='1", "a;drop table vector_points"} {
		_, err := payloadKeyExpr(key, 1)
		require.ErrorIs(t, err, appErr.ErrInvalid, "key %q must be rejected", key)
	}
}

func TestSearch_RejectsBadFilterKeyBeforeQuerying(t *testing.T) {
	store := NewStore(nil, 3)
	_, err := store.Search(context.Background(), []float32{1, 2, 3}, "tenant-a", 5,
		vectorstore.Filter{"a' OR tenant_id != '": "x"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestDeleteByFilter_RejectsBadFilterKey(t *testing.T) {
	store := NewStore(nil, 3)
	_, err := store.DeleteByFilter(context.Background(),
		vectorstore.Filter{"a' OR tenant_id != '": "x"})
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
