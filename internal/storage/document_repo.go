package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks askdocs-ai/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// DocumentStore defines the interface for document storage operations.
type DocumentStore interface {
	// GetByID gets a document by its ID.
	// Returns nil and ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*DocumentRecord, error)
	// GetByName gets a document by its unique name.
	// Returns nil and ErrNotFound if not found.
	GetByName(ctx context.Context, name string) (*DocumentRecord, error)
	// Upsert inserts a new document or updates an existing one by name.
	Upsert(ctx context.Context, doc *DocumentRecord) error
	// List returns all documents ordered by name.
	List(ctx context.Context) ([]DocumentRecord, error)
	// Delete removes a document; chunks are removed via cascade.
	Delete(ctx context.Context, id string) error
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// GetByID gets a document by its ID.
// Returns nil and ErrNotFound if not found.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*DocumentRecord, error) {
	return r.getOne(ctx,
		"SELECT id, name, content_hash, size_bytes, chunk_count, indexed_at FROM documents WHERE id = ?",
		id,
	)
}

// GetByName gets a document by its unique name.
// Returns nil and ErrNotFound if not found.
func (r *DocumentRepo) GetByName(ctx context.Context, name string) (*DocumentRecord, error) {
	return r.getOne(ctx,
		"SELECT id, name, content_hash, size_bytes, chunk_count, indexed_at FROM documents WHERE name = ?",
		name,
	)
}

func (r *DocumentRepo) getOne(ctx context.Context, query string, arg any) (*DocumentRecord, error) {
	var doc DocumentRecord
	var indexedAtStr string

	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&doc.ID, &doc.Name, &doc.ContentHash, &doc.SizeBytes, &doc.ChunkCount, &indexedAtStr)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	doc.IndexedAt, err = parseTimestamp(indexedAtStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse indexed_at timestamp: %w", err)
	}

	return &doc, nil
}

// Upsert inserts a new document or updates an existing one.
// If the document doesn't exist (by name), generates a new UUID.
// If it exists, updates hash, size, chunk count, and indexed_at while
// preserving the ID.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *DocumentRecord) error {
	// Check if document exists to determine if we need to generate UUID
	existing, err := r.GetByName(ctx, doc.Name)
	if err != nil && err != ErrNotFound {
		return fmt.Errorf("failed to check existing document: %w", err)
	}

	// Generate UUID for new documents only
	if existing == nil && doc.ID == "" {
		doc.ID = uuid.New().String()
	} else if existing != nil {
		// Preserve existing ID
		doc.ID = existing.ID
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, content_hash, size_bytes, chunk_count, indexed_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (name) DO UPDATE SET
		 content_hash = excluded.content_hash, size_bytes = excluded.size_bytes,
		 chunk_count = excluded.chunk_count, indexed_at = CURRENT_TIMESTAMP`,
		doc.ID, doc.Name, doc.ContentHash, doc.SizeBytes, doc.ChunkCount,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	return nil
}

// List returns all documents ordered by name.
func (r *DocumentRepo) List(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, content_hash, size_bytes, chunk_count, indexed_at FROM documents ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var docs []DocumentRecord
	for rows.Next() {
		var doc DocumentRecord
		var indexedAtStr string
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.ContentHash, &doc.SizeBytes, &doc.ChunkCount, &indexedAtStr); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}

		doc.IndexedAt, err = parseTimestamp(indexedAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse indexed_at timestamp: %w", err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return docs, nil
}

// Delete removes a document; chunks are removed via cascade.
// Returns ErrNotFound if no document with the given ID exists.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// parseTimestamp parses a SQLite DATETIME string. SQLite may emit either
// its default format or RFC3339 depending on how the value was written.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
