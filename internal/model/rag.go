package model

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RagResult is the transient outcome of one query. Sources and
// ContextUsed carry the payloads of the matched points; persistence,
// if any, is the caller's business.
type RagResult struct {
	Answer      string                   `json:"answer"`
	Sources     []map[string]interface{} `json:"sources"`
	ContextUsed []map[string]interface{} `json:"context_used"`
}

// IngestResult reports how far an ingestion got. VectorsWritten is
// false when the relational write succeeded but the vector write did
// not; callers must treat that as partial success, not silence.
type IngestResult struct {
	DocumentID     string `json:"document_id"`
	Chunks         int    `json:"chunks"`
	VectorsWritten bool   `json:"vectors_written"`
}
