package storage

import "time"

// DocumentRecord represents an indexed document in the database.
type DocumentRecord struct {
	ID          string // UUID
	Name        string // Unique document name (typically the file name)
	ContentHash string // SHA256 hex string of the raw content
	SizeBytes   int    // Raw content size in bytes
	ChunkCount  int    // Number of chunks produced at indexing time
	IndexedAt   time.Time
}

// ChunkRecord represents a stored chunk of a document, mirrored in the
// vector index for retrieval.
type ChunkRecord struct {
	ID         string // Deterministic chunk ID ("<document_id>:<ordinal>")
	DocumentID string // Foreign key to documents.id
	Ordinal    int    // Position within the document (starts at 0)
	Text       string // Chunk text content
	TokenCount int    // Approximate token count at chunking time
	StartChar  int    // Start offset in the cleaned document text
	EndChar    int    // End offset in the cleaned document text
}
