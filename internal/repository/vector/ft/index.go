// Package ft is a VectorIndex over Valkey/Redis FT.SEARCH, one HASH per vector.
package ft

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/dishpal/internal/db"
	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/search/result"
)

var _ domain.VectorIndex = (*Index)(nil)

const (
	fieldID     = "id"
	fieldVector = "vector"
)

// store is the consumer interface for the FT index (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Options configures the HNSW graph. Zero values keep server defaults.
type Options struct {
	KeyPrefix       string // e.g. "dishpal:"
	HNSWM           int
	HNSWEFConstruct int
}

// Index implements domain.VectorIndex.
type Index struct {
	store     store
	dim       int
	keyPrefix string
	indexName string
	opts      Options
}

// New creates the adapter. Call EnsureIndex once before serving.
func New(s store, dim int, opts Options) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidArgument, dim)
	}
	prefix := opts.KeyPrefix + "vec:"
	return &Index{
		store:     s,
		dim:       dim,
		keyPrefix: prefix,
		indexName: prefix + "idx",
		opts:      opts,
	}, nil
}

// EnsureIndex creates the FT index if it does not exist yet.
func (ix *Index) EnsureIndex(ctx context.Context) error {
	exists, err := ix.store.IndexExists(ctx, ix.indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", ix.indexName, err)
	}
	if exists {
		return nil
	}
	def, err := db.NewIndex(ix.indexName).
		Prefix(ix.keyPrefix).
		Tag(fieldID).
		VectorHNSW(fieldVector, ix.dim, db.DistanceL2, ix.opts.HNSWM, ix.opts.HNSWEFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}
	if err := ix.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", ix.indexName, err)
	}
	return nil
}

// Dimension returns the configured vector length.
func (ix *Index) Dimension() int { return ix.dim }

// Upsert writes the vector hash; HSET replaces an existing one.
func (ix *Index) Upsert(ctx context.Context, id string, vector []float32) error {
	if err := domain.CheckDimension(vector, ix.dim); err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	fields := map[string]string{
		fieldID:     id,
		fieldVector: db.EncodeVector(vector),
	}
	if err := ix.store.HSet(ctx, ix.keyPrefix+id, fields); err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

// Search runs a KNN query. The backend reports squared L2, so scores are
// square-rooted to keep one distance convention across adapters.
func (ix *Index) Search(ctx context.Context, query []float32, topK int) ([]result.Ranked, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	if err := domain.CheckDimension(query, ix.dim); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	sr, err := ix.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    ix.indexName,
		Field:        fieldVector,
		Vector:       query,
		K:            topK,
		ReturnFields: []string{fieldID, "__vector_score"},
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	out := make([]result.Ranked, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := e.Fields[fieldID]
		if id == "" {
			id = strings.TrimPrefix(e.Key, ix.keyPrefix)
		}
		out = append(out, result.New(id, math.Sqrt(math.Max(0, e.Score))))
	}
	if len(out) > topK {
		out = out[:topK]
	}
	result.Assign(out)
	return out, nil
}

// Delete removes the vector hash. DEL on a missing key is a no-op.
func (ix *Index) Delete(ctx context.Context, id string) error {
	if err := ix.store.Del(ctx, ix.keyPrefix+id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}
