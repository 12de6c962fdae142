package request

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedRoute labels requests that matched no registered pattern. Tenant
// paths land here, which keeps tenant ids out of the label set.
const unmatchedRoute = "unmatched"

// Metrics observes HTTP request duration by route pattern.
type Metrics struct {
	duration *prometheus.HistogramVec
}

// NewMetrics registers request metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tenantgate_http_request_duration_seconds",
			Help:    "HTTP request duration by route pattern, method and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

func (m *Metrics) observe(route, method string, status int, elapsed time.Duration) {
	m.duration.WithLabelValues(route, method, statusClass(status)).Observe(elapsed.Seconds())
}

// LatencyMiddleware records request duration. A nil Metrics disables it.
func LatencyMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)
			m.observe(routePattern(r), r.Method, rec.status, time.Since(start))
		})
	}
}

// routePattern is the chi pattern that served r. It is only complete after
// the router has run.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
