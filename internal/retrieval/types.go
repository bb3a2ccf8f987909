package retrieval

// Result is a chunk candidate returned by vector retrieval.
type Result struct {
	ChunkID    string
	DocumentID string
	Ordinal    int
	Text       string
	Score      float64 // similarity score from the vector index
}

// RankedResult pairs a candidate with its re-ranker relevance score.
type RankedResult struct {
	Result
	RelevanceScore float64
	RetrievalRank  int // 0-based rank from the retrieval stage
}
