package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	apperrors "carrental/pkg/errors"
	httputil "carrental/pkg/http"
	"carrental/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var httpPanics = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "carrental_http_panics_total",
	Help: "Handler panics recovered, by resource",
}, []string{"resource"})

// Recovery turns a handler panic into a 500 envelope. When the handler has
// already started its response or hijacked the connection for a websocket,
// only the log line and counter are emitted.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				httpPanics.WithLabelValues(resourceOf(r.URL.Path)).Inc()
				log.Error("Panic recovered",
					"request_id", RequestIDFromContext(r.Context()),
					"user_id", r.Header.Get(UserIDHeader),
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"response_started", wrapped.written,
					"stack", string(debug.Stack()),
				)

				if wrapped.written {
					return
				}
				_ = httputil.WriteError(wrapped, apperrors.Internal("An unexpected error occurred", fmt.Errorf("panic: %v", rec)))
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
