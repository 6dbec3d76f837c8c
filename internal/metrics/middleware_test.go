package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// discountRouter mirrors the /v1/discounts layout of the API server.
func discountRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Route("/v1/discounts", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"items":[]}`))
		})
		r.Post("/", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "id") == "missing" {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{}`))
		})
		r.Delete("/vector/{vector_id}", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	})
	r.Get("/health", func(_ http.ResponseWriter, _ *http.Request) {})
	return r
}

func serve(t *testing.T, h http.Handler, method, target string) int {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, http.NoBody))
	return rr.Code
}

func requests(method, route, code string) float64 {
	return testutil.ToFloat64(apiRequests.WithLabelValues(method, route, code))
}

func TestMiddleware_GroupsByRoutePattern(t *testing.T) {
	h := discountRouter()
	before := requests("GET", "/v1/discounts/{id}", "200")

	for _, id := range []string{"d1", "d2", "d3"} {
		if code := serve(t, h, "GET", "/v1/discounts/"+id); code != http.StatusOK {
			t.Fatalf("GET %s: status %d", id, code)
		}
	}

	if got := requests("GET", "/v1/discounts/{id}", "200") - before; got != 3 {
		t.Errorf("expected 3 requests under the {id} pattern, got %v", got)
	}
	if got := requests("GET", "/v1/discounts/d1", "200"); got != 0 {
		t.Errorf("raw path leaked into labels: %v", got)
	}
}

func TestMiddleware_StatusCodes(t *testing.T) {
	h := discountRouter()

	tests := []struct {
		method, target, route, code string
	}{
		{"GET", "/v1/discounts/missing", "/v1/discounts/{id}", "404"},
		{"DELETE", "/v1/discounts/vector/v-9", "/v1/discounts/vector/{vector_id}", "204"},
		{"POST", "/v1/discounts", "/v1/discounts", "201"},
		{"GET", "/v1/discounts/", "/v1/discounts", "200"},
		// пустой хендлер: статус не записан явно
		{"GET", "/health", "/health", "200"},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.target, func(t *testing.T) {
			before := requests(tc.method, tc.route, tc.code)
			serve(t, h, tc.method, tc.target)
			if got := requests(tc.method, tc.route, tc.code) - before; got != 1 {
				t.Errorf("expected one request labelled %s %s %s, got %v", tc.method, tc.route, tc.code, got)
			}
		})
	}
}

func TestMiddleware_UnmatchedRoutes(t *testing.T) {
	h := discountRouter()

	tests := []struct {
		name, method, target string
		code                 int
	}{
		{"unknown top-level path", "GET", "/wp-admin/setup.php", http.StatusNotFound},
		{"unknown path inside subrouter", "GET", "/v1/discounts/vector/v1/extra", http.StatusNotFound},
		{"method not allowed", "PUT", "/v1/discounts/d1", http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code := strconv.Itoa(tc.code)
			before := requests(tc.method, unmatchedRoute, code)
			if got := serve(t, h, tc.method, tc.target); got != tc.code {
				t.Fatalf("status %d, want %d", got, tc.code)
			}
			if got := requests(tc.method, unmatchedRoute, code) - before; got != 1 {
				t.Errorf("expected request under %q, got %v", unmatchedRoute, got)
			}
		})
	}
}

func TestMiddleware_LatencyObserved(t *testing.T) {
	h := discountRouter()
	serve(t, h, "DELETE", "/v1/discounts/vector/v-1")

	if n := testutil.CollectAndCount(apiLatency, "dishpal_api_request_duration_seconds"); n == 0 {
		t.Fatal("expected latency series")
	}
	if got := testutil.ToFloat64(apiInFlight); got != 0 {
		t.Errorf("in-flight gauge must return to 0, got %v", got)
	}
}

func TestMiddleware_InFlightDuringRequest(t *testing.T) {
	var during float64
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/v1/discounts/discover", func(_ http.ResponseWriter, _ *http.Request) {
		during = testutil.ToFloat64(apiInFlight)
	})

	serve(t, r, "POST", "/v1/discounts/discover")
	if during < 1 {
		t.Errorf("expected in-flight >= 1 while serving, got %v", during)
	}
}

func TestRouteLabel_WithoutRouter(t *testing.T) {
	req := httptest.NewRequest("GET", "/v1/discounts", http.NoBody)
	if got := routeLabel(req); got != unmatchedRoute {
		t.Errorf("routeLabel without chi context = %q, want %q", got, unmatchedRoute)
	}
}

func TestRegisterDiscoveryMetrics_Idempotent(t *testing.T) {
	RegisterDiscoveryMetrics()
	RegisterDiscoveryMetrics()

	DiscoveryRequestsTotal.WithLabelValues("proximity", "ok").Inc()
	if got := testutil.ToFloat64(DiscoveryRequestsTotal.WithLabelValues("proximity", "ok")); got < 1 {
		t.Errorf("expected discovery_requests_total >= 1, got %f", got)
	}
}

