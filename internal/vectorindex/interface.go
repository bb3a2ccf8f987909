package vectorindex

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_index.go -package=mocks askdocs-ai/internal/vectorindex VectorIndex

import "context"

// Point represents a chunk embedding with its payload. Meta must carry a
// document_id entry; backends use it for scoped search and deletion.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a scored match from similarity search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// IndexInfo describes the state of the index.
type IndexInfo struct {
	VectorSize  int
	PointsCount int
	Status      string
}

// VectorIndex is the nearest-neighbor index over chunk embeddings. An
// implementation serves one named collection; queries are always scoped to
// a single document.
type VectorIndex interface {
	// EnsureReady creates the collection if needed and validates that its
	// vector size matches the embedding model.
	EnsureReady(ctx context.Context, vectorSize int) error

	// Upsert inserts or updates points.
	Upsert(ctx context.Context, points []Point) error

	// Search returns the k nearest points for the document, best first.
	Search(ctx context.Context, query []float32, k int, documentID string) ([]SearchResult, error)

	// DeleteByDocument removes every point belonging to the document.
	// Re-indexing deletes first, then upserts, so a shrinking document
	// leaves no stale tail points.
	DeleteByDocument(ctx context.Context, documentID string) error

	// Info reports size and point count for health and stats surfaces.
	Info(ctx context.Context) (*IndexInfo, error)
}
