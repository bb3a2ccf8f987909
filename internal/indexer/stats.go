package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// ChunkerVersion identifies the chunking implementation. It feeds the index
// version hash so algorithm changes mark stored vectors as stale.
const ChunkerVersion = "v2.0"

// IndexStats summarizes the indexed corpus.
type IndexStats struct {
	DocumentCount  int             `json:"document_count"`
	EmptyDocuments int             `json:"empty_documents"`
	ChunkCount     int             `json:"chunk_count"`
	ChunkTokens    ChunkTokenStats `json:"chunk_tokens"`
	ChunkerVersion string          `json:"chunker_version"`
	IndexVersion   string          `json:"index_version"`
}

// ChunkTokenStats summarizes the token counts stored per chunk.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// Stats walks the stored documents and summarizes chunk coverage. Token
// counts come from the records written at indexing time, so the summary
// reflects whichever counter tier produced them.
func (p *Pipeline) Stats(ctx context.Context, embeddingModel string) (*IndexStats, error) {
	docs, err := p.documents.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	stats := &IndexStats{
		DocumentCount:  len(docs),
		ChunkerVersion: ChunkerVersion,
		IndexVersion:   indexVersion(embeddingModel, p.chunker.opts),
	}

	var tokenCounts []int
	for _, doc := range docs {
		chunks, err := p.chunks.ListByDocument(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list chunks for %s: %w", doc.Name, err)
		}
		if len(chunks) == 0 {
			stats.EmptyDocuments++
			continue
		}
		stats.ChunkCount += len(chunks)
		for _, chunk := range chunks {
			tokenCounts = append(tokenCounts, chunk.TokenCount)
		}
	}

	stats.ChunkTokens = computeTokenStats(tokenCounts)
	return stats, nil
}

// indexVersion hashes everything that shapes the index: chunker version,
// window parameters, and the embedding model.
func indexVersion(embeddingModel string, opts ChunkerOptions) string {
	input := fmt.Sprintf("%s|%s|target=%d|overlap=%d|structure=%t",
		ChunkerVersion, embeddingModel, opts.TargetTokens, opts.OverlapTokens, opts.PreserveStructure)
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:16]
}

// computeTokenStats computes min, max, mean, and nearest-rank p95.
func computeTokenStats(tokenCounts []int) ChunkTokenStats {
	if len(tokenCounts) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(tokenCounts))
	copy(sorted, tokenCounts)
	sort.Ints(sorted)

	sum := 0
	for _, n := range sorted {
		sum += n
	}
	mean := float64(sum) / float64(len(sorted))

	p95Index := int(math.Ceil(float64(len(sorted))*0.95)) - 1
	if p95Index < 0 {
		p95Index = 0
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100,
		P95:  sorted[p95Index],
	}
}
