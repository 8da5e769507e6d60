package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"carrental/pkg/config"
	"carrental/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type routeHandler struct {
	path string
}

func (h routeHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET(h.path, func(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusTeapot)
	})
}

type blockingWorker struct {
	started atomic.Bool
	stopped atomic.Bool
}

func (w *blockingWorker) Name() string { return "blocking" }

func (w *blockingWorker) Start(ctx context.Context) error {
	w.started.Store(true)
	<-ctx.Done()
	w.stopped.Store(true)
	return ctx.Err()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context, _ *readpref.ReadPref) error { return f(ctx) }

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		Log:               logger.Discard(),
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    5 * time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1024,
		ShutdownTimeout:   time.Second,
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestApplication_Routes(t *testing.T) {
	a := NewApplication(testConfig())
	a.SetApp(routeHandler{path: "/ws/chat"}, routeHandler{path: "/api/v1/cars"})
	t.Cleanup(a.stopWorkers)

	h := a.Handler()

	rec := get(t, h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, h, "/ready")
	require.Equal(t, http.StatusOK, rec.Code)
	var ready HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, "memory", ready.Database)

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))

	assert.Equal(t, http.StatusTeapot, get(t, h, "/api/v1/cars").Code)
	assert.Equal(t, http.StatusTeapot, get(t, h, "/ws/chat").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/unknown").Code)
}

func TestHealthHandler_ReadyPing(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
	}{
		{"database up", nil, http.StatusOK},
		{"database down", errors.New("server selection timeout"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := httprouter.New()
			NewHealthHandler(pingerFunc(func(context.Context) error { return tt.pingErr }), logger.Discard()).RegisterRoutes(router)

			rec := get(t, router, "/ready")
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestApplication_WorkersLifecycle(t *testing.T) {
	a := NewApplication(testConfig())
	a.SetApp(nil, routeHandler{path: "/api/v1/cars"})

	w := &blockingWorker{}
	a.AddWorker(w)

	var closed atomic.Int32
	a.OnShutdown(closerFunc(func() error {
		closed.Add(1)
		return nil
	}))

	a.startWorkers(context.Background())
	require.Eventually(t, w.started.Load, time.Second, 5*time.Millisecond)

	a.stopWorkers()
	assert.True(t, w.stopped.Load())
	assert.Equal(t, int32(1), closed.Load())

	a.stopWorkers()
	assert.Equal(t, int32(1), closed.Load(), "closers run once")
}
