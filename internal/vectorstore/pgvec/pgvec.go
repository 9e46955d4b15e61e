// Package pgvec stores points in a Postgres table with a pgvector
// column, for deployments that already run Postgres and want one less
// moving part than a dedicated search service.
package pgvec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/docqahq/docqa/internal/model"
	appErr "github.com/docqahq/docqa/internal/pkg/errors"
	"github.com/docqahq/docqa/internal/vectorstore"
)

type Store struct {
	db        *sql.DB
	dimension int
}

func NewStore(db *sql.DB, dimension int) *Store {
	return &Store{db: db, dimension: dimension}
}

// Filter keys end up inside the SQL text as json accessors, so they
// are restricted to identifier characters. Values always go through
// bind parameters.
var payloadKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func payloadKeyExpr(key string, argPos int) (string, error) {
	if !payloadKeyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: unsupported filter key %q", appErr.ErrInvalid, key)
	}
	return fmt.Sprintf("payload->>'%s' = $%d", key, argPos), nil
}

func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vector_points (
			id UUID PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			document_id TEXT NOT NULL DEFAULT '',
			payload JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		)`, s.dimension),
		`CREATE INDEX IF NOT EXISTS idx_vector_points_tenant ON vector_points (tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vector_points_document ON vector_points (tenant_id, document_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, point model.IndexedPoint) error {
	return s.BatchUpsert(ctx, []model.IndexedPoint{point})
}

func (s *Store) BatchUpsert(ctx context.Context, points []model.IndexedPoint) error {
	if err := vectorstore.ValidatePoints(points, s.dimension); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	const query = `
		INSERT INTO vector_points (id, tenant_id, document_id, payload, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			document_id = EXCLUDED.document_id,
			payload = EXCLUDED.payload,
			embedding = EXCLUDED.embedding
	`
	for _, point := range points {
		blob, err := json.Marshal(point.Payload)
		if err != nil {
			return err
		}
		docID, _ := point.Payload[model.PayloadDocumentID].(string)
		if _, err := tx.ExecContext(ctx, query,
			point.ID,
			point.TenantID(),
			docID,
			blob,
			pgvector.NewVector(point.Vector),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Search(ctx context.Context, queryVector []float32, tenantID string, topK int, extra vectorstore.Filter) ([]model.SearchHit, error) {
	if err := vectorstore.ValidateQueryVector(queryVector, s.dimension); err != nil {
		return nil, err
	}
	topK = vectorstore.ClampTopK(topK, vectorstore.MaxTopK)

	where := []string{"tenant_id = $2"}
	args := []interface{}{pgvector.NewVector(queryVector), tenantID}
	for key, value := range extra {
		args = append(args, fmt.Sprintf("%v", value))
		expr, err := payloadKeyExpr(key, len(args))
		if err != nil {
			return nil, err
		}
		where = append(where, expr)
	}
	args = append(args, topK)
	query := fmt.Sprintf(`
		SELECT id, payload, 1 - (embedding <=> $1) AS score
		FROM vector_points
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, strings.Join(where, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrSearchFailed, err)
	}
	defer rows.Close()
	var hits []model.SearchHit
	for rows.Next() {
		var id string
		var blob []byte
		var score float64
		if err := rows.Scan(&id, &blob, &score); err != nil {
			return nil, fmt.Errorf("%w: %v", appErr.ErrSearchFailed, err)
		}
		payload := map[string]interface{}{}
		if err := json.Unmarshal(blob, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", appErr.ErrSearchFailed, err)
		}
		hits = append(hits, model.SearchHit{
			Point: model.IndexedPoint{ID: id, Payload: payload},
			Score: float32(score),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrSearchFailed, err)
	}
	return hits, nil
}

func (s *Store) DeleteByFilter(ctx context.Context, filter vectorstore.Filter) (int64, error) {
	if len(filter) == 0 {
		return 0, fmt.Errorf("%w: delete filter must not be empty", appErr.ErrInvalid)
	}
	var where []string
	var args []interface{}
	for key, value := range filter {
		args = append(args, fmt.Sprintf("%v", value))
		switch key {
		case model.PayloadTenantID:
			where = append(where, fmt.Sprintf("tenant_id = $%d", len(args)))
		case model.PayloadDocumentID:
			where = append(where, fmt.Sprintf("document_id = $%d", len(args)))
		default:
			expr, err := payloadKeyExpr(key, len(args))
			if err != nil {
				return 0, err
			}
			where = append(where, expr)
		}
	}
	query := "DELETE FROM vector_points WHERE " + strings.Join(where, " AND ")
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) Count(ctx context.Context, tenantID string) (int64, error) {
	query := "SELECT COUNT(*) FROM vector_points"
	var args []interface{}
	if tenantID != "" {
		query += " WHERE tenant_id = $1"
		args = append(args, tenantID)
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
