package discovery

import (
	"context"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
	"github.com/kailas-cloud/dishpal/internal/domain/geo"
	"github.com/kailas-cloud/dishpal/internal/domain/search/result"
)

// Catalog reads discount records.
type Catalog interface {
	ListLocated(ctx context.Context) ([]discount.Discount, error)
	GetByVectorID(ctx context.Context, vectorID string) (discount.Discount, error)
}

// Locator resolves a client IP to a coordinate. A nil coordinate means unknown.
type Locator interface {
	Locate(ctx context.Context, ip string) (*geo.Coordinate, error)
}

// Embedder vectorizes search text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorIndex answers nearest-neighbour queries.
type VectorIndex interface {
	Search(ctx context.Context, query []float32, topK int) ([]result.Ranked, error)
	Dimension() int
}
