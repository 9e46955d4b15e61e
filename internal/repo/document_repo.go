package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/docqahq/docqa/internal/model"
	"github.com/docqahq/docqa/internal/pkg/dbutil"
	appErr "github.com/docqahq/docqa/internal/pkg/errors"
)

// DocumentRepo keeps the relational metadata row for every ingested
// document. The chunked content itself lives in the vector store;
// these rows back listing, stats and cleanup.
type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Save(ctx context.Context, doc *model.Document) error {
	const query = `
		INSERT INTO documents (id, tenant_id, title, content_hash, chunk_count, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content_hash = EXCLUDED.content_hash,
			chunk_count = EXCLUDED.chunk_count,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.TenantID, doc.Title, doc.ContentHash, doc.ChunkCount, doc.Ctime, doc.Mtime)
	return err
}

func (r *DocumentRepo) Get(ctx context.Context, tenantID, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":        docID,
		"tenant_id": tenantID,
	}
	sqlStr, args, err := builder.BuildSelect("documents", where,
		[]string{"id", "tenant_id", "title", "content_hash", "chunk_count", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	row := r.db.QueryRowContext(ctx, sqlStr, args...)
	var doc model.Document
	if err := row.Scan(&doc.ID, &doc.TenantID, &doc.Title, &doc.ContentHash, &doc.ChunkCount, &doc.Ctime, &doc.Mtime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Document, error) {
	where := map[string]interface{}{
		"tenant_id": tenantID,
		"_orderby":  "mtime desc",
	}
	sqlStr, args, err := builder.BuildSelect("documents", where,
		[]string{"id", "tenant_id", "title", "content_hash", "chunk_count", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []model.Document
	for rows.Next() {
		var doc model.Document
		if err := rows.Scan(&doc.ID, &doc.TenantID, &doc.Title, &doc.ContentHash, &doc.ChunkCount, &doc.Ctime, &doc.Mtime); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) Delete(ctx context.Context, tenantID, docID string) error {
	sqlStr, args := dbutil.Finalize(
		"DELETE FROM documents WHERE id=? AND tenant_id=?",
		[]interface{}{docID, tenantID},
	)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT COUNT(*) FROM documents WHERE tenant_id=?",
		[]interface{}{tenantID},
	)
	var count int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
