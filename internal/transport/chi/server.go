package chi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dishpal/internal/domain"
	"github.com/kailas-cloud/dishpal/internal/domain/discount"
	"github.com/kailas-cloud/dishpal/internal/domain/geo"
	"github.com/kailas-cloud/dishpal/internal/domain/search/query"
	logpkg "github.com/kailas-cloud/dishpal/internal/logger"
	discoveryuc "github.com/kailas-cloud/dishpal/internal/usecase/discovery"
	healthuc "github.com/kailas-cloud/dishpal/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/dishpal/internal/usecase/ingest"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBodyBytes    = 1 << 20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the discount HTTP API.
type Server struct {
	discovery     *discoveryuc.Service
	ingest        *ingestuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
	defaultTopK   int
}

// NewServer creates an HTTP API server.
func NewServer(
	discovery *discoveryuc.Service,
	ingest *ingestuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		discovery: discovery,
		ingest:    ingest,
		health:    health,
		logger:    logger,
	}
	// Order matters: ingest wraps coordinate errors in ErrInvalidArgument.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery, true),
		sentinelHandler(domain.ErrInvalidCoordinate, http.StatusBadRequest, CodeInvalidCoordinate, true),
		sentinelHandler(domain.ErrInvalidArgument, http.StatusBadRequest, CodeInvalidArgument, true),
		sentinelHandler(discount.ErrInvalid, http.StatusBadRequest, CodeInvalidArgument, true),
		sentinelHandler(domain.ErrLocationUnavailable,
			http.StatusUnprocessableEntity, CodeLocationUnavailable, false),
		sentinelHandler(discount.ErrRetailerNotFound, http.StatusNotFound, CodeRetailerNotFound, false),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound, false),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists, false),
		sentinelHandler(domain.ErrDimensionMismatch,
			http.StatusInternalServerError, CodeDimensionMismatch, false),
		sentinelHandler(domain.ErrEmbeddingFailed, http.StatusBadGateway, CodeEmbeddingFailed, false),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingFailed, false),
	}
	return s
}

// WithDefaultTopK sets top_k for text queries that omit it.
func (s *Server) WithDefaultTopK(k int) *Server {
	s.defaultTopK = k
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r gochi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1/discounts", func(r gochi.Router) {
		r.Get("/", s.ListDiscounts)
		r.Post("/", s.CreateDiscount)
		r.Get("/nearby", s.Nearby)
		r.Get("/search", s.Search)
		r.Post("/discover", s.Discover)
		r.Delete("/vector/{vector_id}", s.DeleteByVectorID)
		r.Get("/{id}", s.GetDiscount)
	})
	r.Route("/v1/retailers", func(r gochi.Router) {
		r.Get("/", s.ListRetailers)
		r.Get("/{id}", s.GetRetailer)
	})
}

// Nearby handles GET /v1/discounts/nearby. Without lat/lon the client IP
// is geolocated.
func (s *Server) Nearby(w http.ResponseWriter, r *http.Request) {
	var params NearbyParams
	if !bindQuery(w, r, "lat", &params.Lat) ||
		!bindQuery(w, r, "lon", &params.Lon) ||
		!bindQuery(w, r, "max_distance", &params.MaxDistance) {
		return
	}

	in := query.Input{MaxDistanceKm: params.MaxDistance}
	switch {
	case params.Lat != nil && params.Lon != nil:
		in.Coordinate = &geo.Coordinate{Lat: *params.Lat, Lon: *params.Lon}
	case params.Lat != nil || params.Lon != nil:
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, "lat and lon must be given together")
		return
	default:
		in.ClientIP = clientIP(r)
	}
	s.discover(w, r, in)
}

// Search handles GET /v1/discounts/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var params SearchParams
	if !bindQuery(w, r, "q", &params.Q) || !bindQuery(w, r, "top_k", &params.TopK) {
		return
	}
	if params.Q == nil {
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, "q is required")
		return
	}
	s.discover(w, r, query.Input{Text: params.Q, TopK: params.TopK})
}

// Discover handles POST /v1/discounts/discover.
func (s *Server) Discover(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in := query.Input{MaxDistanceKm: req.MaxDistanceKm, Text: req.Query, TopK: req.TopK}
	switch {
	case req.Lat != nil && req.Lon != nil:
		in.Coordinate = &geo.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
	case req.Lat != nil || req.Lon != nil:
		writeError(w, http.StatusBadRequest, CodeInvalidQuery, "lat and lon must be given together")
		return
	}
	if req.NearMe {
		if in.Coordinate != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidQuery, "near_me excludes lat/lon")
			return
		}
		in.ClientIP = clientIP(r)
	}
	s.discover(w, r, in)
}

func (s *Server) discover(w http.ResponseWriter, r *http.Request, in query.Input) {
	if in.Text != nil && in.TopK == nil && s.defaultTopK > 0 {
		k := s.defaultTopK
		in.TopK = &k
	}
	q, err := query.Parse(in)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	hits, err := s.discovery.Discover(ctx, q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	now := time.Now()
	items := make([]RankedDiscount, len(hits))
	for i := range hits {
		items[i] = hitToResponse(&hits[i], now)
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, DiscoveryResponse{
		Mode:  string(q.Mode()),
		Items: items,
		Total: len(items),
	})
}

// ListDiscounts handles GET /v1/discounts.
func (s *Server) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	var params ListParams
	if !bindQuery(w, r, "cursor", &params.Cursor) || !bindQuery(w, r, "limit", &params.Limit) {
		return
	}
	if params.Limit != nil && (*params.Limit < 1 || *params.Limit > maxPageSize) {
		writeError(w, http.StatusBadRequest, CodeInvalidArgument,
			"limit must be between 1 and "+strconv.Itoa(maxPageSize))
		return
	}

	ds, err := s.ingest.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	now := time.Now()
	items := make([]DiscountResponse, len(ds))
	for i := range ds {
		items[i] = discountToResponse(&ds[i], now)
	}
	writeJSON(w, http.StatusOK, paginateDiscounts(items, params.Cursor, params.Limit))
}

func paginateDiscounts(items []DiscountResponse, cursor *string, limitPtr *int) DiscountListResponse {
	limit := defaultPageSize
	if limitPtr != nil {
		limit = *limitPtr
	}

	startIdx := 0
	if cursor != nil && *cursor != "" {
		for i, item := range items {
			if item.ID == *cursor {
				startIdx = i + 1
				break
			}
		}
	}

	end := min(startIdx+limit, len(items))
	page := items[startIdx:end]
	hasMore := end < len(items)

	resp := DiscountListResponse{Items: page, HasMore: hasMore}
	if hasMore && len(page) > 0 {
		c := page[len(page)-1].ID
		resp.NextCursor = &c
	}
	return resp
}

// GetDiscount handles GET /v1/discounts/{id}.
func (s *Server) GetDiscount(w http.ResponseWriter, r *http.Request) {
	var id string
	if !bindPath(w, r, "id", &id) {
		return
	}
	d, err := s.ingest.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, discountToResponse(&d, time.Now()))
}

// ListRetailers handles GET /v1/retailers. An empty catalog yields an empty list.
func (s *Server) ListRetailers(w http.ResponseWriter, r *http.Request) {
	rs, err := s.ingest.ListRetailers(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	items := make([]RetailerSummaryResponse, 0, len(rs))
	for _, rt := range rs {
		items = append(items, retailerSummaryToResponse(rt))
	}
	writeJSON(w, http.StatusOK, RetailerListResponse{Items: items, Total: len(items)})
}

// GetRetailer handles GET /v1/retailers/{id}.
func (s *Server) GetRetailer(w http.ResponseWriter, r *http.Request) {
	var key string
	if !bindPath(w, r, "id", &key) {
		return
	}
	rt, err := s.ingest.GetRetailer(r.Context(), key)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, retailerSummaryToResponse(rt))
}

// CreateDiscount handles POST /v1/discounts.
func (s *Server) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req CreateDiscountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	params, err := paramsFromRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidCoordinate, err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	d, err := s.ingest.Create(ctx, params)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusCreated, discountToResponse(&d, time.Now()))
}

// DeleteByVectorID handles DELETE /v1/discounts/vector/{vector_id}.
func (s *Server) DeleteByVectorID(w http.ResponseWriter, r *http.Request) {
	var vectorID string
	if !bindPath(w, r, "vector_id", &vectorID) {
		return
	}
	if err := s.ingest.DeleteByVectorID(r.Context(), vectorID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// bindQuery decodes an optional form-style query parameter. On failure it
// writes a 400 and returns false.
func bindQuery(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), dest); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter "+name+": "+err.Error())
		return false
	}
	return true
}

func bindPath(w http.ResponseWriter, r *http.Request, name string, dest any) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, gochi.URLParam(r, name), dest,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid parameter "+name+": "+err.Error())
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// clientIP returns the caller address without port. RemoteAddr is already
// rewritten from X-Forwarded-For / X-Real-IP by the RealIP middleware.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage != nil && usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		discount.ErrRetailerNotFound,
		domain.ErrLocationUnavailable,
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrDimensionMismatch,
		domain.ErrEmbeddingFailed,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler maps one sentinel to a status. detailed errors carry only
// request-derived text and are returned verbatim.
func sentinelHandler(sentinel error, status int, code ErrorCode, detailed bool) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := safeDomainMessage(err)
		if detailed {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
