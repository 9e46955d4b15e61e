package model

// EmbeddingCacheEntry is one row of the persistent embedding cache,
// keyed by (model, task type, content hash) so the same text embedded
// for retrieval and for queries never collides.
type EmbeddingCacheEntry struct {
	ModelName   string    `json:"model_name"`
	TaskType    string    `json:"task_type"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}
