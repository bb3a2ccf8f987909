package indexer

import "fmt"

// Chunk is one contiguous span of a cleaned document, sized for embedding.
type Chunk struct {
	ID         string // deterministic: "<documentID>:<ordinal>"
	DocumentID string
	Ordinal    int    // position within the document (starts at 0)
	Text       string // chunk text content
	TokenCount int
	StartChar  int               // rune offset into the cleaned source (inclusive)
	EndChar    int               // rune offset into the cleaned source (exclusive)
	Metadata   map[string]string // document name and other payload carried to the index
}

// ChunkID builds the deterministic chunk identifier. Re-chunking the same
// document yields the same IDs, which keeps vector upserts idempotent.
func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s:%04d", documentID, ordinal)
}
