package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
)

// Service creates and removes discounts, keeping the catalog and the vector index in step.
type Service struct {
	catalog  Catalog
	index    VectorWriter
	embedder Embedder
	now      func() time.Time
	logger   *zap.Logger
}

// New creates an ingest service. With a nil embedder or index discounts are
// stored without a vector and only take part in proximity search.
func New(catalog Catalog, index VectorWriter, embedder Embedder, logger *zap.Logger) *Service {
	return &Service{
		catalog:  catalog,
		index:    index,
		embedder: embedder,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *Service) vectorizes() bool { return s.embedder != nil && s.index != nil }

// Create validates p, assigns ids, embeds the description and stores both the
// vector and the record. A record is never stored without its vector.
func (s *Service) Create(ctx context.Context, p discount.Params) (discount.Discount, error) {
	d, err := s.prepare(p)
	if err != nil {
		return discount.Discount{}, err
	}

	if !s.vectorizes() {
		if err := s.catalog.Create(ctx, d); err != nil {
			return discount.Discount{}, fmt.Errorf("store discount: %w", err)
		}
		return d, nil
	}
	if err := s.ensureFree(ctx, d); err != nil {
		return discount.Discount{}, err
	}

	res, err := s.embedder.Embed(ctx, d.Description())
	if err != nil {
		return discount.Discount{}, fmt.Errorf("vectorize description: %w: %w", domain.ErrEmbeddingFailed, err)
	}
	if err := s.store(ctx, d, res.Embedding); err != nil {
		return discount.Discount{}, err
	}
	return d, nil
}

// CreateBatch is Create for many discounts with one embedding round trip per
// provider batch. It stops at the first storage error; discounts stored
// before it stay stored and are returned.
func (s *Service) CreateBatch(ctx context.Context, params []discount.Params) ([]discount.Discount, error) {
	prepared := make([]discount.Discount, len(params))
	for i := range params {
		d, err := s.prepare(params[i])
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		prepared[i] = d
	}

	if !s.vectorizes() {
		for i, d := range prepared {
			if err := s.catalog.Create(ctx, d); err != nil {
				return prepared[:i], fmt.Errorf("store discount %s: %w", d.ID(), err)
			}
		}
		return prepared, nil
	}

	for i := range prepared {
		if err := s.ensureFree(ctx, prepared[i]); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	texts := make([]string, len(prepared))
	for i := range prepared {
		texts[i] = prepared[i].Description()
	}
	res, err := domain.EmbedAll(ctx, s.embedder, texts)
	if err != nil {
		return nil, fmt.Errorf("vectorize descriptions: %w: %w", domain.ErrEmbeddingFailed, err)
	}
	if len(res.Embeddings) != len(prepared) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d descriptions",
			domain.ErrEmbeddingFailed, len(res.Embeddings), len(prepared))
	}

	for i, d := range prepared {
		if err := s.store(ctx, d, res.Embeddings[i]); err != nil {
			return prepared[:i], err
		}
	}
	return prepared, nil
}

func (s *Service) prepare(p discount.Params) (discount.Discount, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.VectorID == "" && s.vectorizes() {
		p.VectorID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	d, err := discount.New(p)
	if err != nil {
		return discount.Discount{}, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}
	return d, nil
}

// ensureFree rejects a discount whose id or vector id is already in the
// catalog, before anything is written to the index.
func (s *Service) ensureFree(ctx context.Context, d discount.Discount) error {
	if _, err := s.catalog.GetByID(ctx, d.ID()); err == nil {
		return fmt.Errorf("discount %s: %w", d.ID(), domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("check discount %s: %w", d.ID(), err)
	}
	if _, err := s.catalog.GetByVectorID(ctx, d.VectorID()); err == nil {
		return fmt.Errorf("vector %s: %w", d.VectorID(), domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("check vector %s: %w", d.VectorID(), err)
	}
	return nil
}

func (s *Service) store(ctx context.Context, d discount.Discount, vec []float32) error {
	if err := domain.CheckDimension(vec, s.index.Dimension()); err != nil {
		return fmt.Errorf("description embedding: %w", err)
	}
	// повторная проверка: дубликат внутри одного батча
	if err := s.ensureFree(ctx, d); err != nil {
		return err
	}
	if err := s.index.Upsert(ctx, d.VectorID(), vec); err != nil {
		return fmt.Errorf("upsert vector: %w", err)
	}
	if err := s.catalog.Create(ctx, d); err != nil {
		s.rollbackVector(ctx, d.VectorID())
		return fmt.Errorf("store discount: %w", err)
	}
	return nil
}

// rollbackVector removes a vector written for a record that was not stored,
// unless a concurrent Create has meanwhile claimed the same vector id.
func (s *Service) rollbackVector(ctx context.Context, vectorID string) {
	if _, err := s.catalog.GetByVectorID(ctx, vectorID); err == nil {
		s.logger.Warn("Vector id claimed concurrently, keeping vector", zap.String("vector_id", vectorID))
		return
	}
	if err := s.index.Delete(ctx, vectorID); err != nil {
		s.logger.Error("Failed to roll back vector after catalog error",
			zap.String("vector_id", vectorID), zap.Error(err))
	}
}

// Get returns a discount by id.
func (s *Service) Get(ctx context.Context, id string) (discount.Discount, error) {
	d, err := s.catalog.GetByID(ctx, id)
	if err != nil {
		return discount.Discount{}, fmt.Errorf("get discount: %w", err)
	}
	return d, nil
}

// List returns every discount in insertion order.
func (s *Service) List(ctx context.Context) ([]discount.Discount, error) {
	ds, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	return ds, nil
}

// ListRetailers returns the distinct retailers of the catalog in insertion order.
func (s *Service) ListRetailers(ctx context.Context) ([]discount.RetailerSummary, error) {
	ds, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list retailers: %w", err)
	}
	return discount.Retailers(ds), nil
}

// GetRetailer returns one retailer by its key (id, or name for retailers without one).
func (s *Service) GetRetailer(ctx context.Context, key string) (discount.RetailerSummary, error) {
	ds, err := s.catalog.List(ctx)
	if err != nil {
		return discount.RetailerSummary{}, fmt.Errorf("get retailer: %w", err)
	}
	r, err := discount.FindRetailer(ds, key)
	if err != nil {
		return discount.RetailerSummary{}, fmt.Errorf("get retailer: %w", err)
	}
	return r, nil
}

// DeleteByVectorID removes the discount owning vectorID and its embedding.
// The record goes first so search never resolves a half-deleted discount.
func (s *Service) DeleteByVectorID(ctx context.Context, vectorID string) error {
	d, err := s.catalog.GetByVectorID(ctx, vectorID)
	if err != nil {
		return fmt.Errorf("get discount by vector: %w", err)
	}
	if err := s.catalog.Delete(ctx, d.ID()); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete discount: %w", err)
	}
	if s.index != nil {
		if err := s.index.Delete(ctx, vectorID); err != nil {
			return fmt.Errorf("delete vector: %w", err)
		}
	}
	return nil
}
