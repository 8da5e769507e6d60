package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carrental_http_requests_total",
		Help: "HTTP requests by resource, method and status code",
	}, []string{"resource", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "carrental_http_request_duration_seconds",
		Help:    "HTTP request latency by resource and method",
		Buckets: prometheus.DefBuckets,
	}, []string{"resource", "method"})
)

// Metrics records request counts and latency. Resources are collapsed to the
// first path segment under /api/v1 to keep label cardinality bounded.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			resource := resourceOf(r.URL.Path)
			httpDuration.WithLabelValues(resource, r.Method).Observe(time.Since(start).Seconds())
			httpRequests.WithLabelValues(resource, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		})
	}
}

func resourceOf(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/v1/")
	if !ok {
		return "other"
	}
	resource, _, _ := strings.Cut(rest, "/")
	switch resource {
	case "cars", "bookings", "chats":
		return resource
	}
	return "other"
}
