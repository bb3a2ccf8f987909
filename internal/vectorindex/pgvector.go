package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"askdocs-ai/internal/contextutil"
)

// PgvectorIndex implements VectorIndex backed by a Postgres table using the
// pgvector extension. Cosine similarity is computed as 1 - (embedding <=> query).
type PgvectorIndex struct {
	db         *sqlx.DB
	table      string
	vectorSize int
}

var tableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewPgvectorIndex connects to Postgres and validates the table name, which
// is interpolated into statements and must be a plain identifier.
func NewPgvectorIndex(dsn, table string) (*PgvectorIndex, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PgvectorIndex{db: db, table: table}, nil
}

func (p *PgvectorIndex) EnsureReady(ctx context.Context, vectorSize int) error {
	if _, err := p.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector extension: %w", err)
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			payload JSONB
		)`, p.table, vectorSize)
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create table %s: %w", p.table, err)
	}

	indexStmt := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_document_id_idx ON %s (document_id)",
		p.table, p.table,
	)
	if _, err := p.db.ExecContext(ctx, indexStmt); err != nil {
		return fmt.Errorf("failed to create document index: %w", err)
	}

	p.vectorSize = vectorSize
	return nil
}

func (p *PgvectorIndex) Upsert(ctx context.Context, points []Point) error {
	logger := contextutil.LoggerFromContext(ctx)

	if len(points) == 0 {
		return nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, document_id, embedding, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			embedding = EXCLUDED.embedding,
			payload = EXCLUDED.payload`, p.table)

	for _, pt := range points {
		documentID, _ := pt.Meta["document_id"].(string)
		payload, err := json.Marshal(pt.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal payload for point %s: %w", pt.ID, err)
		}
		if _, err := tx.ExecContext(ctx, stmt, pt.ID, documentID, pgvector.NewVector(pt.Vec), payload); err != nil {
			return fmt.Errorf("failed to upsert point %s: %w", pt.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}

	logger.InfoContext(ctx, "upserted points", "table", p.table, "count", len(points))
	return nil
}

type pgPointRow struct {
	ID      string  `db:"id"`
	Score   float64 `db:"score"`
	Payload []byte  `db:"payload"`
}

func (p *PgvectorIndex) Search(ctx context.Context, query []float32, k int, documentID string) ([]SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	var (
		rows []pgPointRow
		err  error
	)
	if documentID == "" {
		stmt := fmt.Sprintf(`
			SELECT id, 1 - (embedding <=> $1) AS score, payload
			FROM %s
			ORDER BY embedding <=> $1
			LIMIT $2`, p.table)
		err = p.db.SelectContext(ctx, &rows, stmt, pgvector.NewVector(query), k)
	} else {
		stmt := fmt.Sprintf(`
			SELECT id, 1 - (embedding <=> $1) AS score, payload
			FROM %s
			WHERE document_id = $2
			ORDER BY embedding <=> $1
			LIMIT $3`, p.table)
		err = p.db.SelectContext(ctx, &rows, stmt, pgvector.NewVector(query), documentID, k)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		meta := make(map[string]any)
		if len(row.Payload) > 0 {
			if err := json.Unmarshal(row.Payload, &meta); err != nil {
				return nil, fmt.Errorf("failed to decode payload for point %s: %w", row.ID, err)
			}
		}
		results = append(results, SearchResult{
			PointID: row.ID,
			Score:   float32(row.Score),
			Meta:    meta,
		})
	}

	logger.InfoContext(ctx, "search completed", "table", p.table, "k", k, "results", len(results))
	return results, nil
}

func (p *PgvectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	logger := contextutil.LoggerFromContext(ctx)

	if documentID == "" {
		return fmt.Errorf("document id must not be empty")
	}

	stmt := fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", p.table)
	if _, err := p.db.ExecContext(ctx, stmt, documentID); err != nil {
		logger.ErrorContext(ctx, "failed to delete points", "table", p.table, "document_id", documentID, "error", err)
		return fmt.Errorf("failed to delete points for document %s: %w", documentID, err)
	}

	logger.InfoContext(ctx, "deleted points", "table", p.table, "document_id", documentID)
	return nil
}

func (p *PgvectorIndex) Info(ctx context.Context) (*IndexInfo, error) {
	var count int
	stmt := fmt.Sprintf("SELECT COUNT(*) FROM %s", p.table)
	if err := p.db.GetContext(ctx, &count, stmt); err != nil {
		return nil, fmt.Errorf("failed to count points: %w", err)
	}
	return &IndexInfo{
		VectorSize:  p.vectorSize,
		PointsCount: count,
		Status:      "Green",
	}, nil
}

// Close releases the underlying connection pool.
func (p *PgvectorIndex) Close() error {
	return p.db.Close()
}
