package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/docqahq/docqa/internal/model"
	appErr "github.com/docqahq/docqa/internal/pkg/errors"
)

// Chunker splits long text into overlapping character windows. Window
// boundaries snap back to the nearest sentence terminal, but only when
// that terminal lies past the window midpoint, so sparse punctuation
// cannot produce degenerate slivers.
type Chunker struct {
	maxSize int
	overlap int
}

func NewChunker(maxSize, overlap int) *Chunker {
	if maxSize <= 0 {
		maxSize = 2000
	}
	if overlap < 0 || overlap >= maxSize {
		overlap = maxSize / 10
	}
	return &Chunker{maxSize: maxSize, overlap: overlap}
}

func (c *Chunker) Chunk(ctx context.Context, text string) ([]model.Chunk, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return nil, appErr.ErrEmptyInput
	}
	sourceHash := ContentHash(normalized)
	parts := splitText(normalized, c.maxSize, c.overlap)
	chunks := make([]model.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, model.Chunk{
			Text:        part,
			Index:       i,
			TotalChunks: len(parts),
			SourceHash:  sourceHash,
		})
	}
	logutil.GetLogger(ctx).Debug("chunking completed",
		zap.Int("size", len(normalized)),
		zap.Int("total_chunks", len(chunks)),
	)
	return chunks, nil
}

func splitText(text string, maxSize, overlap int) []string {
	runes := []rune(text)
	if len(runes) <= maxSize {
		return []string{text}
	}
	var parts []string
	start := 0
	for start < len(runes) {
		end := start + maxSize
		if end >= len(runes) {
			parts = append(parts, string(runes[start:]))
			break
		}
		window := runes[start:end]
		if cut := lastSentenceBreak(window); cut > maxSize/2 {
			end = start + cut + 1
		}
		parts = append(parts, string(runes[start:end]))
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return parts
}

func lastSentenceBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?', '\n':
			return i
		}
	}
	return -1
}

// Normalize collapses horizontal whitespace runs and trims each line,
// dropping blank lines. Sentence-terminal newlines survive so the
// chunker can still break on them. The same normalization feeds the
// content hash used for cache and dedup keys.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n")
}

func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
