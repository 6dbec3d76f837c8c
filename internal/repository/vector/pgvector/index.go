// Package pgvector is a VectorIndex backed by PostgreSQL with the pgvector extension.
package pgvector

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/search/result"
)

var _ domain.VectorIndex = (*Index)(nil)

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// DefaultTable is used when Options.Table is empty.
const DefaultTable = "discount_vectors"

// querier is the subset of *pgxpool.Pool the index uses.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Options configures the table.
type Options struct {
	Table string
}

// Index implements domain.VectorIndex with `embedding <-> $1` (Euclidean) ordering.
type Index struct {
	db    querier
	dim   int
	table string
}

// Connect opens a pgx pool for dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// New creates the adapter over an open pool. Call Migrate before serving.
func New(db querier, dim int, opts Options) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidArgument, dim)
	}
	table := opts.Table
	if table == "" {
		table = DefaultTable
	}
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", domain.ErrInvalidArgument, table)
	}
	return &Index{db: db, dim: dim, table: table}, nil
}

// Migrate creates the extension, table and HNSW index if missing.
func (ix *Index) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS %[1]s (
  id         text PRIMARY KEY,
  seq        bigserial,
  embedding  vector(%[2]d) NOT NULL,
  updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING hnsw (embedding vector_l2_ops);
`, ix.table, ix.dim)
	if _, err := ix.db.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate %s: %w", ix.table, err)
	}
	return nil
}

// Dimension returns the configured vector length.
func (ix *Index) Dimension() int { return ix.dim }

// Upsert inserts or replaces the row for id. A replaced row keeps its seq.
func (ix *Index) Upsert(ctx context.Context, id string, vector []float32) error {
	if err := domain.CheckDimension(vector, ix.dim); err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	q := fmt.Sprintf(`
INSERT INTO %s (id, embedding) VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, updated_at = now()`, ix.table)
	if _, err := ix.db.Exec(ctx, q, id, pgv.NewVector(vector)); err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

// Search returns the topK nearest rows, ties broken by insertion order.
func (ix *Index) Search(ctx context.Context, query []float32, topK int) ([]result.Ranked, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	if err := domain.CheckDimension(query, ix.dim); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	q := fmt.Sprintf(`
SELECT id, embedding <-> $1 AS distance
FROM %s
ORDER BY distance, seq
LIMIT $2`, ix.table)
	rows, err := ix.db.Query(ctx, q, pgv.NewVector(query), topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var out []result.Ranked
	for rows.Next() {
		var (
			id   string
			dist float64
		)
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, result.New(id, dist))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	result.Assign(out)
	return out, nil
}

// Delete removes the row. Deleting an absent id affects zero rows and succeeds.
func (ix *Index) Delete(ctx context.Context, id string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, ix.table)
	if _, err := ix.db.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}
