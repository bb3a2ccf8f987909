package docsource

import (
	"context"
	"fmt"
	"os"

	"askdocs-ai/internal/contextutil"
	"askdocs-ai/internal/storage"
)

// DocumentIndexer indexes one named document. *indexer.Pipeline satisfies it.
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, name string, content []byte) (*storage.DocumentRecord, error)
}

// Syncer pushes every file under the docs root through the indexing
// pipeline. Unchanged documents are skipped by the pipeline's hash check.
type Syncer struct {
	scanner *Scanner
	indexer DocumentIndexer
}

func NewSyncer(scanner *Scanner, indexer DocumentIndexer) *Syncer {
	return &Syncer{scanner: scanner, indexer: indexer}
}

// SyncAll scans the docs root and indexes each file found. Files that fail
// to read or index are logged and skipped; the remaining files still sync.
func (s *Syncer) SyncAll(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := s.scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan docs directory: %w", err)
	}

	logger.InfoContext(ctx, "starting document sync", "total_files", len(files))

	var successCount, errorCount int
	for _, file := range files {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		content, err := os.ReadFile(file.AbsPath)
		if err != nil {
			errorCount++
			logger.ErrorContext(ctx, "failed to read file", "name", file.Name, "error", err)
			continue
		}

		if _, err := s.indexer.IndexDocument(ctx, file.Name, content); err != nil {
			errorCount++
			logger.ErrorContext(ctx, "failed to index file", "name", file.Name, "error", err)
			continue
		}

		successCount++
	}

	logger.InfoContext(ctx, "document sync completed", "total_files", len(files), "success", successCount, "errors", errorCount)

	if errorCount > 0 {
		return fmt.Errorf("document sync completed with %d errors", errorCount)
	}

	return nil
}
