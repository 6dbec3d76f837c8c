package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedRoute labels requests chi could not route (404/405 from the mux).
// Raw URLs never reach a label.
const unmatchedRoute = "unmatched"

var (
	apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route pattern",
			// discovery с эмбеддингом укладывается в секунды, всё остальное в миллисекунды
			Buckets: []float64{0.002, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route", "code"},
	)

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "API requests by route pattern and status code",
		},
		[]string{"method", "route", "code"},
	)

	apiInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_in_flight",
			Help:      "API requests currently being served",
		},
	)
)

func init() {
	prometheus.MustRegister(apiLatency, apiRequests, apiInFlight)
}

// Middleware observes every request under the chi route pattern it matched,
// so /v1/discounts/42 and /v1/discounts/43 share one series.
// It must be mounted with Router.Use: the pattern is only known after routing.
func Middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiInFlight.Inc()
			defer apiInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			code := ww.Status()
			if code == 0 {
				// хендлер ничего не записал, net/http ответит 200
				code = http.StatusOK
			}
			labels := prometheus.Labels{
				"method": r.Method,
				"route":  routeLabel(r),
				"code":   strconv.Itoa(code),
			}
			apiLatency.With(labels).Observe(time.Since(start).Seconds())
			apiRequests.With(labels).Inc()
		})
	}
}

// routeLabel returns the matched pattern without a trailing slash, so a
// subrouter's "/v1/discounts/" and a plain "/v1/discounts" collapse.
// Anything chi did not route ends up as unmatchedRoute.
func routeLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	pattern := rctx.RoutePattern()
	// subrouter, в котором ничего не нашлось, оставляет свой mount-паттерн "/prefix/*"
	if pattern == "" || strings.HasSuffix(pattern, "/*") {
		return unmatchedRoute
	}
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	return pattern
}
