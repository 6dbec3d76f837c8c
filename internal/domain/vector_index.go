package domain

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/dishpal/internal/domain/search/result"
)

// VectorIndex stores fixed-dimension embeddings keyed by vector id and answers
// nearest-neighbour queries ordered by ascending Euclidean distance.
type VectorIndex interface {
	// Upsert inserts or replaces the vector stored under id.
	Upsert(ctx context.Context, id string, vector []float32) error
	// Search returns at most topK hits, closest first.
	Search(ctx context.Context, query []float32, topK int) ([]result.Ranked, error)
	// Delete removes id. Deleting an absent id is not an error.
	Delete(ctx context.Context, id string) error
	// Dimension is the vector length every call must match.
	Dimension() int
}

// CheckDimension returns ErrDimensionMismatch when len(v) != dim.
func CheckDimension(v []float32, dim int) error {
	if len(v) != dim {
		return &DimensionError{Got: len(v), Want: dim}
	}
	return nil
}

// DimensionError wraps ErrDimensionMismatch with the offending lengths.
type DimensionError struct {
	Got  int
	Want int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: got %d, want %d", ErrDimensionMismatch.Error(), e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }
