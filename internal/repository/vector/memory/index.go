// Package memory is an exact, process-local VectorIndex.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/search/result"
)

var _ domain.VectorIndex = (*Index)(nil)

type entry struct {
	seq    uint64
	vector []float32
}

// Index scans every stored vector on each query. Ties in distance keep
// first-insertion order; replacing a vector keeps its original position.
type Index struct {
	dim int

	mu      sync.RWMutex
	entries map[string]entry
	nextSeq uint64
}

// New creates an empty index of the given dimension.
func New(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidArgument, dim)
	}
	return &Index{dim: dim, entries: make(map[string]entry)}, nil
}

// Dimension returns the configured vector length.
func (ix *Index) Dimension() int { return ix.dim }

// Upsert stores a copy of vector under id.
func (ix *Index) Upsert(_ context.Context, id string, vector []float32) error {
	if err := domain.CheckDimension(vector, ix.dim); err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	v := make([]float32, len(vector))
	copy(v, vector)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.entries[id]
	if !ok {
		e.seq = ix.nextSeq
		ix.nextSeq++
	}
	e.vector = v
	ix.entries[id] = e
	return nil
}

// Search returns the topK closest vectors by Euclidean distance.
func (ix *Index) Search(ctx context.Context, query []float32, topK int) ([]result.Ranked, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	if err := domain.CheckDimension(query, ix.dim); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	type scored struct {
		id   string
		seq  uint64
		dist float64
	}

	ix.mu.RLock()
	hits := make([]scored, 0, len(ix.entries))
	for id, e := range ix.entries {
		hits = append(hits, scored{id: id, seq: e.seq, dist: l2(query, e.vector)})
	}
	ix.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].seq < hits[j].seq
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	out := make([]result.Ranked, len(hits))
	for i, h := range hits {
		out[i] = result.New(h.id, h.dist)
	}
	result.Assign(out)
	return out, nil
}

// Delete removes id if present.
func (ix *Index) Delete(_ context.Context, id string) error {
	ix.mu.Lock()
	delete(ix.entries, id)
	ix.mu.Unlock()
	return nil
}

// Len returns the number of stored vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

func l2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
