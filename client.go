package dishpal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dishpal/internal/db"
	dbRedis "github.com/kailas-cloud/dishpal/internal/db/redis"
	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
	"github.com/kailas-cloud/dishpal/internal/repository/catalog"
	"github.com/kailas-cloud/dishpal/internal/repository/vector/ft"
	"github.com/kailas-cloud/dishpal/internal/repository/vector/memory"
	"github.com/kailas-cloud/dishpal/internal/transport/ipapi"
	discoveryuc "github.com/kailas-cloud/dishpal/internal/usecase/discovery"
	ingestuc "github.com/kailas-cloud/dishpal/internal/usecase/ingest"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "dishpal:"
)

// Client is the dishpal SDK entry point.
type Client struct {
	store     db.Store
	discovery *discoveryuc.Service
	ingest    *ingestuc.Service
}

type catalogStore interface {
	ingestuc.Catalog
	discoveryuc.Catalog
}

// New creates a Client. Without WithValkey/WithRedis it runs in memory.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{keyPrefix: defaultKeyPrefix}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.embedder != nil && cfg.dim <= 0 {
		return nil, fmt.Errorf("dishpal: %w: embedder dimension must be positive", ErrInvalidArgument)
	}

	var store db.Store
	if len(cfg.addrs) > 0 {
		s, err := createStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := s.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("dishpal: database not ready: %w", err)
		}
		store = s
	}

	c, err := wireClient(store, cfg)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}
	return c, nil
}

func createStore(cfg *clientConfig) (*dbRedis.Store, error) {
	switch cfg.driver {
	case "valkey", "redis":
	default:
		return nil, fmt.Errorf("dishpal: unknown driver %q", cfg.driver)
	}
	s, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("dishpal: create %s store: %w", cfg.driver, err)
	}
	return s, nil
}

func wireClient(store db.Store, cfg *clientConfig) (*Client, error) {
	var cat catalogStore = catalog.NewMemory()
	if store != nil {
		cat = catalog.New(store, cfg.keyPrefix)
	}

	var locator discoveryuc.Locator
	if cfg.locatorURL != "" {
		locator = ipapi.New(ipapi.Config{
			BaseURL: cfg.locatorURL,
			Timeout: cfg.locatorTimeout,
			Logger:  cfg.logger,
		})
	}

	opts := discoveryuc.Options{ProximityLimit: cfg.proximityLimit}
	c := &Client{store: store}

	// text search off: pass untyped nils so the services see "not configured"
	if cfg.embedder == nil {
		c.discovery = discoveryuc.New(cat, locator, nil, nil, opts, cfg.logger)
		c.ingest = ingestuc.New(cat, nil, nil, cfg.logger)
		return c, nil
	}

	index, err := newIndex(store, cfg)
	if err != nil {
		return nil, err
	}
	emb := &embedderAdapter{inner: cfg.embedder}
	c.discovery = discoveryuc.New(cat, locator, emb, index, opts, cfg.logger)
	c.ingest = ingestuc.New(cat, index, emb, cfg.logger)
	return c, nil
}

func newIndex(store db.Store, cfg *clientConfig) (domain.VectorIndex, error) {
	if store == nil {
		ix, err := memory.New(cfg.dim)
		if err != nil {
			return nil, fmt.Errorf("dishpal: %w", err)
		}
		return ix, nil
	}
	ix, err := ft.New(store, cfg.dim, ft.Options{
		KeyPrefix:       cfg.keyPrefix,
		HNSWM:           cfg.hnswM,
		HNSWEFConstruct: cfg.hnswEFConstruct,
	})
	if err != nil {
		return nil, fmt.Errorf("dishpal: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultReadinessTimeout)
	defer cancel()
	if err := ix.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("dishpal: ensure vector index: %w", err)
	}
	return ix, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity. In-memory clients always succeed.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Add validates and stores d, embedding its description when an embedder
// is configured. Missing ids are generated.
func (c *Client) Add(ctx context.Context, d Discount) (Discount, error) {
	p, err := d.params()
	if err != nil {
		return Discount{}, err
	}
	stored, err := c.ingest.Create(ctx, p)
	if err != nil {
		return Discount{}, err
	}
	return fromDomain(&stored), nil
}

// AddBatch is Add for many discounts with batched embedding. Discounts
// stored before an error are returned with it.
func (c *Client) AddBatch(ctx context.Context, ds []Discount) ([]Discount, error) {
	params := make([]discount.Params, len(ds))
	for i := range ds {
		p, err := ds[i].params()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		params[i] = p
	}
	stored, err := c.ingest.CreateBatch(ctx, params)
	out := make([]Discount, len(stored))
	for i := range stored {
		out[i] = fromDomain(&stored[i])
	}
	return out, err
}

// Get returns a discount by id.
func (c *Client) Get(ctx context.Context, id string) (Discount, error) {
	d, err := c.ingest.Get(ctx, id)
	if err != nil {
		return Discount{}, err
	}
	return fromDomain(&d), nil
}

// Delete removes the discount owning vectorID together with its vector.
func (c *Client) Delete(ctx context.Context, vectorID string) error {
	return c.ingest.DeleteByVectorID(ctx, vectorID)
}

// Discover starts a search. Set exactly one of Near, FromIP or Query.
func (c *Client) Discover() *SearchBuilder {
	return &SearchBuilder{client: c}
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if a.inner == nil {
		return domain.EmbeddingResult{}, errors.New("dishpal: embedder not configured")
	}
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}
