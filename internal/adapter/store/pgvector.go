package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/arturoeanton/go-pr-dedup/internal/domain"
	"github.com/arturoeanton/go-pr-dedup/internal/port"
)

// PgVectorStore implements port.VectorStore on Postgres with the pgvector
// extension (the Supabase-style provider). One row per PR, keyed by the
// encoded identity.
type PgVectorStore struct {
	db *sql.DB
}

// NewPgVectorStore opens a connection and verifies it.
func NewPgVectorStore(databaseURL string) (*PgVectorStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PgVectorStore{db: db}, nil
}

// Upsert inserts or replaces the PR's vector.
func (s *PgVectorStore) Upsert(ctx context.Context, id string, vector []float32) error {
	repo, prNumber, err := domain.DecodePRID(id)
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}

	query := `INSERT INTO pr_embeddings (id, repo, pr_number, embedding)
	          VALUES ($1, $2, $3, $4::vector)
	          ON CONFLICT (id) DO UPDATE SET
	              embedding = EXCLUDED.embedding,
	              updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, id, repo, prNumber, vectorToString(vector)); err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

// Query performs a cosine similarity search, then applies identity and
// threshold filtering to the raw rows.
func (s *PgVectorStore) Query(ctx context.Context, vector []float32, topK, minSimilarity int, selfID, repo string) ([]domain.SimilarityMatch, error) {
	query := `SELECT id, 1 - (embedding <=> $1::vector) AS score
	          FROM pr_embeddings
	          ORDER BY embedding <=> $1::vector
	          LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, vectorToString(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var raw []port.RawMatch
	for rows.Next() {
		var m port.RawMatch
		if err := rows.Scan(&m.ID, &m.Score); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		raw = append(raw, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	return filterMatches(raw, minSimilarity, selfID, repo)
}

// Delete removes the PR's row; deleting a missing id is a no-op.
func (s *PgVectorStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pr_embeddings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PgVectorStore) Close() error {
	return s.db.Close()
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

var _ port.VectorStore = (*PgVectorStore)(nil)
