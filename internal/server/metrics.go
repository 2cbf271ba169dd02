package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skyward-io/skygate/internal/telemetry"
)

// statusLabel returns the metric label for an HTTP status code.
// Codes in the normal range come from a table built once at init so
// the hot path never calls strconv.
func statusLabel(code int) string {
	if code >= 100 && code < 600 {
		return statusLabels[code-100]
	}
	return strconv.Itoa(code)
}

var statusLabels [500]string

func init() {
	for i := range statusLabels {
		statusLabels[i] = strconv.Itoa(i + 100)
	}
}

// instrument records request count, duration, and in-flight gauge.
// Durations are labelled by the chi route pattern, not the raw path,
// to keep label cardinality bounded.
func instrument(m *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.ActiveRequests.Inc()
			defer m.ActiveRequests.Dec()

			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			sw.wroteHeader = false

			start := time.Now()
			next.ServeHTTP(sw, r)
			elapsed := time.Since(start).Seconds()

			status := sw.status
			sw.ResponseWriter = nil
			statusWriterPool.Put(sw)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			m.RequestsTotal.WithLabelValues(r.Method, route, statusLabel(status)).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(elapsed)
		})
	}
}
