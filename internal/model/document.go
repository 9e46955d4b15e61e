package model

// Document is the relational metadata row kept alongside the vector
// points of an ingested document. Content itself lives chunked in the
// vector index; this row exists for listing, stats and cleanup.
type Document struct {
	ID          string `json:"id" db:"id"`
	TenantID    string `json:"tenant_id" db:"tenant_id"`
	Title       string `json:"title" db:"title"`
	ContentHash string `json:"content_hash" db:"content_hash"`
	ChunkCount  int    `json:"chunk_count" db:"chunk_count"`
	Ctime       int64  `json:"ctime" db:"ctime"`
	Mtime       int64  `json:"mtime" db:"mtime"`
}
