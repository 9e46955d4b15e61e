package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/docqahq/docqa/internal/model"
)

// EmbeddingCacheRepo persists computed embeddings keyed by
// (model, task type, content hash) so identical text is never embedded
// twice across process restarts. Rows age out via PruneOlderThan,
// driven by the cleanup job.
type EmbeddingCacheRepo struct {
	db *sql.DB
}

func NewEmbeddingCacheRepo(db *sql.DB) *EmbeddingCacheRepo {
	return &EmbeddingCacheRepo{db: db}
}

func (r *EmbeddingCacheRepo) Lookup(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	const query = `SELECT embedding FROM embedding_cache
		WHERE model_name = $1 AND task_type = $2 AND content_hash = $3`
	var vec pgvector.Vector
	err := r.db.QueryRowContext(ctx, query, modelName, taskType, contentHash).Scan(&vec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return vec.Slice(), true, nil
}

func (r *EmbeddingCacheRepo) Store(ctx context.Context, entry *model.EmbeddingCacheEntry) error {
	const query = `INSERT INTO embedding_cache (model_name, task_type, content_hash, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (model_name, task_type, content_hash) DO UPDATE SET
			embedding = EXCLUDED.embedding, ctime = EXCLUDED.ctime`
	_, err := r.db.ExecContext(ctx, query,
		entry.ModelName, entry.TaskType, entry.ContentHash,
		pgvector.NewVector(entry.Embedding), entry.Ctime)
	return err
}

// VerifyDimension checks the declared width of the embedding column
// against the configured pipeline dimension. The migration ships a
// fixed width, so a deployment with a different rag.dimension must
// fail at startup instead of on the first Store.
func (r *EmbeddingCacheRepo) VerifyDimension(ctx context.Context, want int) error {
	const query = `SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'embedding_cache'::regclass AND attname = 'embedding'`
	var declared int
	if err := r.db.QueryRowContext(ctx, query).Scan(&declared); err != nil {
		return fmt.Errorf("read embedding column width: %w", err)
	}
	if !dimensionCompatible(declared, want) {
		return fmt.Errorf("embedding_cache column is vector(%d) but rag.dimension is %d", declared, want)
	}
	return nil
}

// A typmod of -1 means the column was declared without a width and
// accepts any dimension.
func dimensionCompatible(declared, want int) bool {
	return declared == -1 || declared == want
}

// PruneOlderThan deletes entries created before cutoff (unix seconds)
// and reports how many were removed.
func (r *EmbeddingCacheRepo) PruneOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM embedding_cache WHERE ctime < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
