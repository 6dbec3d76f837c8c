// Package app wires configuration into the dishpal services. Both the API
// server and the bulk loader build on it.
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/dishpal/internal/config"
	"github.com/kailas-cloud/dishpal/internal/db"
	dbRedis "github.com/kailas-cloud/dishpal/internal/db/redis"
	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
	"github.com/kailas-cloud/dishpal/internal/metrics"
	"github.com/kailas-cloud/dishpal/internal/repository/catalog"
	"github.com/kailas-cloud/dishpal/internal/repository/embcache"
	"github.com/kailas-cloud/dishpal/internal/repository/vector/ft"
	"github.com/kailas-cloud/dishpal/internal/repository/vector/memory"
	"github.com/kailas-cloud/dishpal/internal/repository/vector/pgvector"
	"github.com/kailas-cloud/dishpal/internal/transport/ipapi"
	openaiEmb "github.com/kailas-cloud/dishpal/internal/transport/openai"
	discoveryuc "github.com/kailas-cloud/dishpal/internal/usecase/discovery"
	embeddinguc "github.com/kailas-cloud/dishpal/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/dishpal/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/dishpal/internal/usecase/ingest"
)

// Catalog is the record store both use cases share.
type Catalog interface {
	ingestuc.Catalog
	ListLocated(ctx context.Context) ([]discount.Discount, error)
}

// App holds the constructed services and the resources they own.
type App struct {
	Discovery *discoveryuc.Service
	Ingest    *ingestuc.Service
	Health    *healthuc.Service

	store   db.Store
	closers []func()
}

// New connects the configured backends and builds the services.
// Semantic search is disabled when no vectorizer is configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{}
	built := false
	defer func() {
		if !built {
			a.Close()
		}
	}()

	if cfg.NeedsStore() {
		if err := a.connectStore(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterDiscoveryMetrics()

	var cat Catalog
	switch cfg.Catalog.Driver {
	case "memory":
		cat = catalog.NewMemory()
	default:
		cat = catalog.New(a.store, cfg.Storage.KeyPrefix)
	}

	var (
		docEmbedder   domain.Embedder
		queryEmbedder domain.Embedder
		index         domain.VectorIndex
		healthEmb     healthuc.Pinger
		vectorPinger  healthuc.Pinger
	)
	if name, vecCfg, ok := selectVectorizer(cfg); ok {
		provCfg := cfg.Embedding.Providers[vecCfg.Provider]
		ttl := time.Duration(cfg.Discovery.CacheTTLSec) * time.Second
		var base *openaiEmb.Embedder
		docEmbedder, base = buildEmbedder(vecCfg, provCfg, vecCfg.DocumentInstruction, a.store, cfg.Storage.KeyPrefix, ttl, logger)
		queryEmbedder, _ = buildEmbedder(vecCfg, provCfg, vecCfg.QueryInstruction, a.store, cfg.Storage.KeyPrefix, ttl, logger)
		healthEmb = healthuc.PingFunc(newEmbeddingHealthChecker(base).HealthCheck)
		logger.Info("Embedders created",
			zap.String("vectorizer", name),
			zap.String("provider", vecCfg.Provider),
			zap.String("model", vecCfg.Model),
			zap.Int("dimensions", vecCfg.Dimensions),
		)

		var err error
		index, vectorPinger, err = a.buildIndex(ctx, cfg, vecCfg.Dimensions, logger)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("No vectorizer configured, semantic search disabled")
	}

	locator := ipapi.New(ipapi.Config{
		BaseURL:       cfg.IPLocator.BaseURL,
		Timeout:       time.Duration(cfg.IPLocator.TimeoutMs) * time.Millisecond,
		RatePerMinute: cfg.IPLocator.RatePerMinute,
		Logger:        logger,
	})

	opts := discoveryuc.Options{
		ProximityLimit:    cfg.Discovery.ProximityLimit,
		ParallelThreshold: cfg.Discovery.ParallelThreshold,
		Workers:           cfg.Discovery.Workers,
	}

	// Nil interfaces, not typed nil pointers, when semantic search is off.
	if index != nil {
		a.Discovery = discoveryuc.New(cat, locator, queryEmbedder, index, opts, logger)
		a.Ingest = ingestuc.New(cat, index, docEmbedder, logger)
	} else {
		a.Discovery = discoveryuc.New(cat, locator, nil, nil, opts, logger)
		a.Ingest = ingestuc.New(cat, nil, nil, logger)
	}

	var storePinger healthuc.Pinger
	if a.store != nil {
		storePinger = a.store
	}
	a.Health = healthuc.New(storePinger, healthEmb)
	if vectorPinger != nil {
		a.Health.WithVectorIndex(vectorPinger)
	}

	built = true
	return a, nil
}

// Close releases every backend connection.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) connectStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	switch cfg.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return fmt.Errorf("create database store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database",
		zap.String("driver", cfg.Database.Driver),
		zap.Strings("addrs", cfg.Database.Addrs),
	)
	a.store = store
	return nil
}

// buildIndex returns the configured vector backend and, for backends outside
// the main store, a pinger for health checks.
func (a *App) buildIndex(
	ctx context.Context, cfg *config.Config, dim int, logger *zap.Logger,
) (domain.VectorIndex, healthuc.Pinger, error) {
	switch cfg.VectorIndex.Driver {
	case "memory":
		ix, err := memory.New(dim)
		if err != nil {
			return nil, nil, fmt.Errorf("memory index: %w", err)
		}
		return ix, nil, nil

	case "pgvector":
		pool, err := pgvector.Connect(ctx, cfg.VectorIndex.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, pool.Close)
		ix, err := pgvector.New(pool, dim, pgvector.Options{Table: cfg.VectorIndex.Table})
		if err != nil {
			return nil, nil, fmt.Errorf("pgvector index: %w", err)
		}
		if err := ix.Migrate(ctx); err != nil {
			return nil, nil, fmt.Errorf("migrate pgvector: %w", err)
		}
		logger.Info("pgvector index ready", zap.String("table", cfg.VectorIndex.Table))
		return ix, pool, nil

	default:
		ix, err := ft.New(a.store, dim, ft.Options{
			KeyPrefix:       cfg.Storage.KeyPrefix,
			HNSWM:           cfg.Index.HNSWM,
			HNSWEFConstruct: cfg.Index.HNSWEFConstruct,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("ft index: %w", err)
		}
		if err := ix.EnsureIndex(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure ft index: %w", err)
		}
		return ix, nil, nil
	}
}

// selectVectorizer returns discovery.vectorizer, or the alphabetically first
// vectorizer when none is named.
func selectVectorizer(cfg *config.Config) (string, config.VectorizerConfig, bool) {
	if name := cfg.Discovery.Vectorizer; name != "" {
		v, ok := cfg.Embedding.Vectorizers[name]
		return name, v, ok
	}
	names := make([]string, 0, len(cfg.Embedding.Vectorizers))
	for n := range cfg.Embedding.Vectorizers {
		names = append(names, n)
	}
	if len(names) == 0 {
		return "", config.VectorizerConfig{}, false
	}
	sort.Strings(names)
	return names[0], cfg.Embedding.Vectorizers[names[0]], true
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented -> Instruction.
// The bare provider is returned for health checks.
func buildEmbedder(
	vecCfg config.VectorizerConfig,
	provCfg config.ProviderConfig,
	instruction string,
	store db.Store,
	keyPrefix string,
	cacheTTL time.Duration,
	logger *zap.Logger,
) (domain.Embedder, *openaiEmb.Embedder) {
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     provCfg.APIKey,
		BaseURL:    provCfg.BaseURL,
		Model:      vecCfg.Model,
		Dimensions: vecCfg.Dimensions,
		Provider:   vecCfg.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = base
	if store != nil {
		embedder = embcache.New(base, store, embcache.Options{
			KeyPrefix: keyPrefix,
			Model:     vecCfg.Model,
			TTL:       cacheTTL,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, vecCfg.Provider, vecCfg.Model, 0, logger)

	// instruction outermost: the cache key includes it
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction), base
	}
	return embedder, base
}

// embeddingHealthChecker asks the provider itself when it can answer health checks.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}
