package discovery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
	"github.com/kailas-cloud/dishpal/internal/domain/geo"
	"github.com/kailas-cloud/dishpal/internal/domain/search/mode"
	"github.com/kailas-cloud/dishpal/internal/domain/search/query"
	"github.com/kailas-cloud/dishpal/internal/domain/search/result"
	"github.com/kailas-cloud/dishpal/internal/metrics"
)

// Defaults for Options.
const (
	DefaultProximityLimit    = 10
	DefaultParallelThreshold = 2048
)

// Hit is a ranked discount. Result.ID is the discount id in both modes.
type Hit struct {
	Discount discount.Discount
	Result   result.Ranked
}

// Options tunes ranking.
type Options struct {
	ProximityLimit    int // max proximity hits
	ParallelThreshold int // candidates above this are scored in parallel chunks
	Workers           int
}

// Service ranks discounts by distance from the caller or by similarity to a text.
type Service struct {
	catalog  Catalog
	locator  Locator
	embedder Embedder
	index    VectorIndex
	opts     Options
	logger   *zap.Logger
}

// New creates a discovery service. locator may be nil: IP-based proximity
// then always reports ErrLocationUnavailable. embedder and index may be nil
// when semantic search is not configured.
func New(
	catalog Catalog, locator Locator, embedder Embedder, index VectorIndex,
	opts Options, logger *zap.Logger,
) *Service {
	if opts.ProximityLimit <= 0 {
		opts.ProximityLimit = DefaultProximityLimit
	}
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = DefaultParallelThreshold
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Service{
		catalog:  catalog,
		locator:  locator,
		embedder: embedder,
		index:    index,
		opts:     opts,
		logger:   logger,
	}
}

// Discover runs q and returns hits closest first. No matches is an empty
// slice and a nil error.
func (s *Service) Discover(ctx context.Context, q query.Query) ([]Hit, error) {
	start := time.Now()

	var (
		hits []Hit
		err  error
	)
	switch q.Mode() {
	case mode.Proximity:
		hits, err = s.proximity(ctx, q)
	case mode.Semantic:
		hits, err = s.semantic(ctx, q)
	default:
		err = fmt.Errorf("%w: unsupported mode %q", domain.ErrInvalidQuery, q.Mode())
	}

	m := string(q.Mode())
	metrics.DiscoveryRequestsTotal.WithLabelValues(m, outcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	metrics.DiscoveryDuration.WithLabelValues(m).Observe(time.Since(start).Seconds())
	metrics.DiscoveryResults.WithLabelValues(m).Observe(float64(len(hits)))

	if hits == nil {
		hits = []Hit{}
	}
	return hits, nil
}

func (s *Service) proximity(ctx context.Context, q query.Query) ([]Hit, error) {
	origin, err := s.resolveOrigin(ctx, q)
	if err != nil {
		return nil, err
	}

	candidates, err := s.catalog.ListLocated(ctx)
	if err != nil {
		return nil, fmt.Errorf("list located discounts: %w", err)
	}

	dists, err := s.distances(ctx, origin, candidates)
	if err != nil {
		return nil, err
	}

	order := make([]int, 0, len(candidates))
	for i, d := range dists {
		if d < 0 {
			continue
		}
		order = append(order, i)
	}
	// catalog order is insertion order, so equal distances keep it
	sort.SliceStable(order, func(a, b int) bool { return dists[order[a]] < dists[order[b]] })

	limit := s.opts.ProximityLimit
	maxKm := q.MaxDistanceKm()
	hits := make([]Hit, 0, min(limit, len(order)))
	for _, i := range order {
		if maxKm != nil && dists[i] > *maxKm {
			break
		}
		if len(hits) == limit {
			break
		}
		hits = append(hits, Hit{Discount: candidates[i], Result: result.New(candidates[i].ID(), dists[i])})
	}
	assignRanks(hits)
	return hits, nil
}

func (s *Service) resolveOrigin(ctx context.Context, q query.Query) (geo.Coordinate, error) {
	if c := q.Coordinate(); c != nil {
		return *c, nil
	}
	if s.locator == nil {
		return geo.Coordinate{}, fmt.Errorf("%w: no ip locator configured", domain.ErrLocationUnavailable)
	}

	c, err := s.locator.Locate(ctx, q.ClientIP())
	if err != nil {
		return geo.Coordinate{}, fmt.Errorf("%w: %w", domain.ErrLocationUnavailable, err)
	}
	if c == nil {
		return geo.Coordinate{}, fmt.Errorf("%w: ip %s could not be located", domain.ErrLocationUnavailable, q.ClientIP())
	}
	return *c, nil
}

// distances scores every candidate against origin. A candidate with a
// malformed stored location gets -1 and is skipped by the caller.
func (s *Service) distances(ctx context.Context, origin geo.Coordinate, candidates []discount.Discount) ([]float64, error) {
	out := make([]float64, len(candidates))

	score := func(from, to int) {
		for i := from; i < to; i++ {
			d, err := geo.Distance(origin, *candidates[i].Location())
			if err != nil {
				s.logger.Warn("Skipping discount with invalid location",
					zap.String("discount_id", candidates[i].ID()), zap.Error(err))
				d = -1
			}
			out[i] = d
		}
	}

	if len(candidates) <= s.opts.ParallelThreshold || s.opts.Workers == 1 {
		score(0, len(candidates))
		return out, nil
	}

	chunk := (len(candidates) + s.opts.Workers - 1) / s.opts.Workers
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for from := 0; from < len(candidates); from += chunk {
		to := min(from+chunk, len(candidates))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err //nolint:wrapcheck // context error is returned as is
			}
			score(from, to)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	return out, nil
}

func (s *Service) semantic(ctx context.Context, q query.Query) ([]Hit, error) {
	if s.embedder == nil || s.index == nil {
		return nil, fmt.Errorf("%w: semantic search is not configured", domain.ErrEmbeddingFailed)
	}

	emb, err := s.embedder.Embed(ctx, q.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, err)
	}
	if err := domain.CheckDimension(emb.Embedding, s.index.Dimension()); err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	ranked, err := s.index.Search(ctx, emb.Embedding, q.TopK())
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]Hit, 0, len(ranked))
	for _, r := range ranked {
		d, err := s.catalog.GetByVectorID(ctx, r.ID())
		if errors.Is(err, domain.ErrNotFound) {
			metrics.DiscoveryDanglingTotal.Inc()
			s.logger.Debug("Dropping dangling vector id", zap.String("vector_id", r.ID()))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve vector %s: %w", r.ID(), err)
		}
		hits = append(hits, Hit{Discount: d, Result: result.New(d.ID(), r.Score())})
	}
	assignRanks(hits)
	return hits, nil
}

func assignRanks(hits []Hit) {
	rs := make([]result.Ranked, len(hits))
	for i := range hits {
		rs[i] = hits[i].Result
	}
	result.Assign(rs)
	for i := range hits {
		hits[i].Result = rs[i]
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, domain.ErrLocationUnavailable):
		return "location_unavailable"
	case errors.Is(err, domain.ErrEmbeddingFailed):
		return "embedding_failed"
	case errors.Is(err, domain.ErrDimensionMismatch):
		return "dimension_mismatch"
	default:
		return "error"
	}
}
