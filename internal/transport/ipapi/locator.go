// Package ipapi resolves client IPs to coordinates through an ip-api.com compatible endpoint.
package ipapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/dishpal/internal/domain/geo"
	"github.com/kailas-cloud/dishpal/internal/metrics"
)

// maxBody caps the response read; ip-api answers are a few hundred bytes.
const maxBody = 64 << 10

// Config holds locator settings.
type Config struct {
	BaseURL       string // e.g. http://ip-api.com/json
	Timeout       time.Duration
	RatePerMinute int // 0 disables throttling
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// Locator performs one lookup per call. It never retries and never caches.
type Locator struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a Locator.
func New(cfg Config) *Locator {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if cfg.Timeout > 0 {
		c := *client
		c.Timeout = cfg.Timeout
		client = &c
	}

	var limiter *rate.Limiter
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), cfg.RatePerMinute)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Locator{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

// Location is the subset of the ip-api payload the service reads.
type Location struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
	Region  string  `json:"regionName"`
	City    string  `json:"city"`
	Zip     string  `json:"zip"`
}

// Locate returns the coordinate for ip, or nil when it cannot be resolved.
// Failures are logged and counted, never returned: the caller turns nil into
// "location unavailable".
func (l *Locator) Locate(ctx context.Context, ip string) (*geo.Coordinate, error) {
	loc, outcome, err := l.lookup(ctx, ip)
	metrics.IPLocatorLookupsTotal.WithLabelValues(outcome).Inc()
	if err != nil {
		l.logger.Warn("IP geolocation failed",
			zap.String("ip", ip),
			zap.String("outcome", outcome),
			zap.Error(err))
		return nil, nil
	}

	c := geo.Coordinate{Lat: loc.Lat, Lon: loc.Lon}
	l.logger.Debug("IP geolocated",
		zap.String("ip", ip),
		zap.String("city", loc.City),
		zap.String("country", loc.Country))
	return &c, nil
}

func (l *Locator) lookup(ctx context.Context, ip string) (Location, string, error) {
	if strings.TrimSpace(ip) == "" {
		return Location{}, "malformed", errors.New("empty ip")
	}

	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return Location{}, "throttled", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/"+url.PathEscape(ip), http.NoBody)
	if err != nil {
		return Location{}, "malformed", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return Location{}, "network", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return Location{}, "http_error", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(&loc); err != nil {
		return Location{}, "malformed", fmt.Errorf("decode response: %w", err)
	}
	if loc.Status != "success" {
		return Location{}, "bad_status", fmt.Errorf("lookup status %q: %s", loc.Status, loc.Message)
	}
	if _, err := geo.NewCoordinate(loc.Lat, loc.Lon); err != nil {
		return Location{}, "malformed", fmt.Errorf("response coordinate: %w", err)
	}
	return loc, "success", nil
}
