package indexer

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"askdocs-ai/internal/contextutil"
	"askdocs-ai/internal/storage"
	"askdocs-ai/internal/vectorindex"
)

// Embedder produces one embedding per input text.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Pipeline turns raw document content into stored chunks and indexed
// vectors: flatten markdown, clean, window into chunks, embed, then write
// SQLite rows and index points.
type Pipeline struct {
	documents storage.DocumentStore
	chunks    storage.ChunkStore
	embedder  Embedder
	index     vectorindex.VectorIndex
	flattener *MarkdownFlattener
	chunker   *WindowChunker

	// Indexing the same document concurrently must not interleave its
	// delete and insert steps, so writes are serialized per document name.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline creates an indexing pipeline around the given chunker.
func NewPipeline(
	documents storage.DocumentStore,
	chunks storage.ChunkStore,
	embedder Embedder,
	index vectorindex.VectorIndex,
	chunker *WindowChunker,
) *Pipeline {
	return &Pipeline{
		documents: documents,
		chunks:    chunks,
		embedder:  embedder,
		index:     index,
		flattener: NewMarkdownFlattener(),
		chunker:   chunker,
	}
}

// IndexDocument indexes one document under its unique name. Content whose
// hash matches the stored record is skipped. Re-indexing replaces the
// document's chunks and vectors completely: old state is deleted before the
// new state is written, so a shrinking document leaves no stale tail.
func (p *Pipeline) IndexDocument(ctx context.Context, name string, content []byte) (*storage.DocumentRecord, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("document name is required")
	}

	lock := p.lockDocument(name)
	lock.Lock()
	defer lock.Unlock()

	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := p.documents.GetByName(ctx, name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing document: %w", err)
	}
	if existing != nil && existing.ContentHash == hash {
		logger.DebugContext(ctx, "document unchanged, skipping", "name", name, "hash", hash)
		return existing, nil
	}

	documentID := uuid.New().String()
	if existing != nil {
		documentID = existing.ID
	}

	text := p.flattener.Flatten(content)
	chunks, err := p.chunker.Chunk(ctx, documentID, text)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk document: %w", err)
	}
	if len(chunks) == 0 {
		logger.WarnContext(ctx, "no chunks produced", "name", name)
	}

	var (
		records []storage.ChunkRecord
		points  []vectorindex.Point
	)
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Text
		}

		embeddings, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(embeddings) != len(chunks) {
			return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings))
		}

		records = make([]storage.ChunkRecord, len(chunks))
		points = make([]vectorindex.Point, len(chunks))
		for i, chunk := range chunks {
			records[i] = storage.ChunkRecord{
				ID:         chunk.ID,
				DocumentID: chunk.DocumentID,
				Ordinal:    chunk.Ordinal,
				Text:       chunk.Text,
				TokenCount: chunk.TokenCount,
				StartChar:  chunk.StartChar,
				EndChar:    chunk.EndChar,
			}
			points[i] = vectorindex.Point{
				ID:  PointID(chunk.ID),
				Vec: embeddings[i],
				Meta: map[string]any{
					"chunk_id":    chunk.ID,
					"document_id": chunk.DocumentID,
					"ordinal":     chunk.Ordinal,
					"token_count": chunk.TokenCount,
				},
			}
		}
	}

	if existing != nil {
		if err := p.index.DeleteByDocument(ctx, documentID); err != nil {
			return nil, fmt.Errorf("failed to delete old vectors: %w", err)
		}
		if err := p.chunks.DeleteByDocument(ctx, documentID); err != nil {
			return nil, fmt.Errorf("failed to delete old chunks: %w", err)
		}
	}

	if len(records) > 0 {
		if err := p.chunks.InsertBatch(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to insert chunks: %w", err)
		}
		if err := p.index.Upsert(ctx, points); err != nil {
			return nil, fmt.Errorf("failed to upsert vectors: %w", err)
		}
	}

	record := &storage.DocumentRecord{
		ID:          documentID,
		Name:        name,
		ContentHash: hash,
		SizeBytes:   len(content),
		ChunkCount:  len(chunks),
	}
	if err := p.documents.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to upsert document: %w", err)
	}

	tokenCounts := make([]int, len(chunks))
	oversize := 0
	oversizeLimit := int(float64(p.chunker.opts.TargetTokens) * tokenTolerance)
	for i, chunk := range chunks {
		tokenCounts[i] = chunk.TokenCount
		if chunk.TokenCount > oversizeLimit {
			oversize++
		}
	}
	tokenStats := computeTokenStats(tokenCounts)

	logger.InfoContext(ctx, "document indexed",
		"name", name,
		"document_id", documentID,
		"chunks", len(chunks),
		"size_bytes", len(content),
		"tokens_mean", tokenStats.Mean,
		"tokens_max", tokenStats.Max,
		"oversize_chunks", oversize,
	)
	return record, nil
}

// RemoveDocument deletes a document's vectors and its record; stored chunks
// are removed by cascade. Returns storage.ErrNotFound when the document does
// not exist.
func (p *Pipeline) RemoveDocument(ctx context.Context, documentID string) error {
	logger := contextutil.LoggerFromContext(ctx)

	doc, err := p.documents.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	lock := p.lockDocument(doc.Name)
	lock.Lock()
	defer lock.Unlock()

	if err := p.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	if err := p.documents.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	logger.InfoContext(ctx, "document removed", "document_id", documentID)
	return nil
}

func (p *Pipeline) lockDocument(name string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locks == nil {
		p.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := p.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[name] = lock
	}
	return lock
}

// PointID derives the vector index point ID for a chunk. Qdrant point IDs
// must be UUIDs, and the derivation is deterministic so re-indexing a chunk
// overwrites its point instead of duplicating it.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}
