package model

// Chunk is one segment of a document produced by the chunker. Chunks
// exist only for the duration of an ingestion call; they are not
// persisted in this form.
type Chunk struct {
	Text        string
	Index       int
	TotalChunks int
	SourceHash  string
}
