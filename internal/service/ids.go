package service

import (
	"strconv"

	"github.com/google/uuid"
)

// pointID is deterministic per (document, chunk) so re-ingesting a
// document replaces its points instead of duplicating them. Qdrant
// requires UUID-shaped ids, hence v5 rather than a plain string key.
func pointID(documentID string, chunkIndex int) string {
	name := documentID + ":" + strconv.Itoa(chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func newDocumentID() string {
	return uuid.NewString()
}
