package retrieval

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_retriever.go -package=mocks askdocs-ai/internal/retrieval Retriever

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"askdocs-ai/internal/contextutil"
	"askdocs-ai/internal/storage"
	"askdocs-ai/internal/vectorindex"
)

var (
	// ErrIndexUnavailable is returned when the vector index cannot be
	// searched. The pipeline treats it as zero local evidence rather than
	// a request failure.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)

const (
	defaultTopK           = 10
	defaultScoreThreshold = 0.35
)

// Embedder produces a query embedding.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Retriever finds the chunks most similar to a query within one document.
type Retriever interface {
	// Retrieve returns candidates ranked by similarity descending. An empty
	// index yields an empty slice, not an error.
	Retrieve(ctx context.Context, documentID, query string) ([]Result, error)
}

// Options controls candidate count and the similarity floor.
type Options struct {
	TopK           int
	ScoreThreshold float64
}

// DefaultOptions returns the standard retrieval settings.
func DefaultOptions() Options {
	return Options{
		TopK:           defaultTopK,
		ScoreThreshold: defaultScoreThreshold,
	}
}

type vectorRetriever struct {
	embedder Embedder
	index    vectorindex.VectorIndex
	chunks   storage.ChunkStore
	cache    *QueryCache
	opts     Options
}

// NewRetriever creates a retriever over the given index and chunk store.
// cache may be nil to disable memoization.
func NewRetriever(embedder Embedder, index vectorindex.VectorIndex, chunks storage.ChunkStore, cache *QueryCache, opts Options) Retriever {
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	if opts.ScoreThreshold < 0 {
		opts.ScoreThreshold = 0
	}
	return &vectorRetriever{
		embedder: embedder,
		index:    index,
		chunks:   chunks,
		cache:    cache,
		opts:     opts,
	}
}

func (r *vectorRetriever) Retrieve(ctx context.Context, documentID, query string) ([]Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if r.cache != nil {
		if cached, ok := r.cache.Get(documentID, query); ok {
			logger.DebugContext(ctx, "retrieval cache hit", "document_id", documentID, "candidates", len(cached))
			return cached, nil
		}
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	matches, err := r.index.Search(ctx, vector, r.opts.TopK, documentID)
	if err != nil {
		logger.ErrorContext(ctx, "vector index search failed", "document_id", documentID, "error", err)
		return nil, fmt.Errorf("%w: %s", ErrIndexUnavailable, err)
	}

	results := make([]Result, 0, len(matches))
	for _, match := range matches {
		score := float64(match.Score)
		if score < r.opts.ScoreThreshold {
			continue
		}

		chunkID, _ := match.Meta["chunk_id"].(string)
		if chunkID == "" {
			logger.WarnContext(ctx, "search result missing chunk_id payload", "point_id", match.PointID)
			continue
		}

		// Chunk text lives in SQLite; the payload carries only identifiers.
		chunk, err := r.chunks.GetByID(ctx, chunkID)
		if err != nil {
			logger.WarnContext(ctx, "failed to fetch chunk text", "chunk_id", chunkID, "error", err)
			continue
		}

		results = append(results, Result{
			ChunkID:    chunkID,
			DocumentID: chunk.DocumentID,
			Ordinal:    chunk.Ordinal,
			Text:       chunk.Text,
			Score:      score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if r.cache != nil {
		r.cache.Put(documentID, query, results)
	}

	logger.InfoContext(ctx, "retrieval completed",
		"document_id", documentID,
		"matches", len(matches),
		"candidates", len(results),
	)
	return results, nil
}
