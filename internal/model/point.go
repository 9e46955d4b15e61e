package model

// Payload field names stored alongside every vector. TenantID is the
// isolation key: a point without it must never be visible to any
// search.
const (
	PayloadTenantID    = "tenant_id"
	PayloadDocumentID  = "document_id"
	PayloadChunkIndex  = "chunk_index"
	PayloadText        = "text"
	PayloadTitle       = "title"
	PayloadTotalChunks = "total_chunks"
)

type IndexedPoint struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector,omitempty"`
	Payload map[string]interface{} `json:"payload"`
}

func (p IndexedPoint) TenantID() string {
	v, _ := p.Payload[PayloadTenantID].(string)
	return v
}

func (p IndexedPoint) Text() string {
	v, _ := p.Payload[PayloadText].(string)
	return v
}

// SearchHit is one ranked result from the vector index. Score is the
// backend's cosine similarity; ordering between equal scores is
// whatever the backend returned.
type SearchHit struct {
	Point IndexedPoint `json:"point"`
	Score float32      `json:"score"`
}
