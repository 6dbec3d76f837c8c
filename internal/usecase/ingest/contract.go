package ingest

import (
	"context"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
)

// Catalog defines the storage contract for discount records.
type Catalog interface {
	Create(ctx context.Context, d discount.Discount) error
	GetByID(ctx context.Context, id string) (discount.Discount, error)
	GetByVectorID(ctx context.Context, vectorID string) (discount.Discount, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]discount.Discount, error)
}

// VectorWriter stores and removes description embeddings.
type VectorWriter interface {
	Upsert(ctx context.Context, id string, vector []float32) error
	Delete(ctx context.Context, id string) error
	Dimension() int
}

// Embedder vectorizes discount descriptions.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
