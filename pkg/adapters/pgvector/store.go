// Package pgvector implements ports.VectorStore on PostgreSQL with the
// pgvector extension, for corpora that outgrow the in-memory index.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/avhart/espalier/pkg/domain"
	"github.com/avhart/espalier/pkg/ports"
)

// Store implements ports.VectorStore on a pgvector-enabled database.
type Store struct {
	db    *sql.DB
	table string
}

// Option configures the store.
type Option func(*Store)

// WithTable overrides the default table name.
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

// Open connects to the database.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewFromDB(db, opts...), nil
}

// NewFromDB wraps an existing connection pool.
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, table: "espalier_chunks"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// EnsureSchema creates the extension and chunk table for the given
// embedding dimension if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", dim)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			ordinal INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.table, dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_document_idx ON %s (document_id)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &domain.ExternalError{Service: "vectorstore", Err: fmt.Errorf("ensure schema: %w", err)}
		}
	}
	return nil
}

// Add inserts the chunks in a single transaction, upserting on ID.
func (s *Store) Add(ctx context.Context, chunks []ports.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.ExternalError{Service: "vectorstore", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, document_id, ordinal, content, embedding)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`, s.table))
	if err != nil {
		return &domain.ExternalError{Service: "vectorstore", Err: err}
	}
	defer stmt.Close()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Ordinal, c.Text, pgv.NewVector(c.Embedding)); err != nil {
			return &domain.ExternalError{Service: "vectorstore", Err: fmt.Errorf("insert chunk %s: %w", c.ID, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.ExternalError{Service: "vectorstore", Err: err}
	}
	return nil
}

// Search returns the k nearest chunks by cosine distance, best first.
func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]ports.ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, document_id, ordinal, content, 1 - (embedding <=> $1) AS score
		 FROM %s
		 ORDER BY embedding <=> $1
		 LIMIT $2`, s.table),
		pgv.NewVector(embedding), k)
	if err != nil {
		return nil, &domain.ExternalError{Service: "vectorstore", Err: err}
	}
	defer rows.Close()

	var out []ports.ScoredChunk
	for rows.Next() {
		var sc ports.ScoredChunk
		if err := rows.Scan(&sc.ID, &sc.DocumentID, &sc.Ordinal, &sc.Text, &sc.Score); err != nil {
			return nil, &domain.ExternalError{Service: "vectorstore", Err: err}
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.ExternalError{Service: "vectorstore", Err: err}
	}
	return out, nil
}
