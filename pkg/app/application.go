package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"carrental/pkg/config"
	"carrental/pkg/contracts"
	"carrental/pkg/middleware"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore *middleware.InMemoryIdempotencyStore
	rateLimiter      *middleware.UserRateLimiter
	healthHandler    http.Handler
	appHttpHandler   http.Handler
	socketHandler    http.Handler
	mux              *http.ServeMux

	workers []contracts.Worker
	closers []io.Closer
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// SetApp mounts the REST handlers behind the full middleware stack and the
// websocket handler behind Recovery and Logging only, since an upgraded
// connection must not be wrapped by the timeout or body-size limits.
func (a *Application) SetApp(socket contracts.Handler, appHandlers ...contracts.Handler) {
	a.setHealthHandler()
	a.setAppHandler(appHandlers)
	a.setSocketHandler(socket)
	a.setAppServer()
}

// AddWorker registers a background loop started by Run.
func (a *Application) AddWorker(w contracts.Worker) {
	a.workers = append(a.workers, w)
}

// OnShutdown registers a resource closed after the workers have stopped.
func (a *Application) OnShutdown(c io.Closer) {
	a.closers = append(a.closers, c)
}

// Handler exposes the routed handler, for tests.
func (a *Application) Handler() http.Handler {
	return a.mux
}

func (a *Application) setHealthHandler() {
	healthRouter := httprouter.New()
	var db Pinger
	if a.cfg.Client != nil && a.cfg.Client.Mongo != nil {
		db = a.cfg.Client.Mongo
	}
	NewHealthHandler(db, a.cfg.Log).RegisterRoutes(healthRouter)
	healthRouter.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	var healthHTTPHandler http.Handler = healthRouter
	healthHTTPHandler = middleware.RequestLogging(a.cfg.Log)(healthHTTPHandler)
	healthHTTPHandler = middleware.Recovery(a.cfg.Log)(healthHTTPHandler)
	a.healthHandler = healthHTTPHandler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(appHandlers []contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range appHandlers {
		h.RegisterRoutes(appRouter)
	}

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewUserRateLimiter(
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		middleware.DefaultUserExtractor,
		a.cfg.Log,
	)

	// Recovery → Logging → MaxSize → ContentType → Metrics → RateLimit → Timeout → Idempotency → Router
	var appHttpHandler http.Handler = appRouter
	appHttpHandler = middleware.Idempotency(a.idempotencyStore, "Idempotency-Key")(appHttpHandler)
	appHttpHandler = middleware.RequestTimeout(a.cfg.RequestTimeout)(appHttpHandler)
	appHttpHandler = middleware.UserRateLimit(a.rateLimiter)(appHttpHandler)
	appHttpHandler = middleware.Metrics()(appHttpHandler)
	appHttpHandler = middleware.ContentTypeValidation(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.MaxRequestSize(int64(a.cfg.MaxRequestSize))(appHttpHandler)
	appHttpHandler = middleware.RequestLogging(a.cfg.Log)(appHttpHandler)
	appHttpHandler = middleware.Recovery(a.cfg.Log)(appHttpHandler)
	a.appHttpHandler = appHttpHandler
	a.cfg.Log.Info("Application endpoints configured with full middleware stack", "handlers", len(appHandlers))
}

func (a *Application) setSocketHandler(socket contracts.Handler) {
	if socket == nil {
		return
	}
	socketRouter := httprouter.New()
	socket.RegisterRoutes(socketRouter)

	var socketHTTPHandler http.Handler = socketRouter
	socketHTTPHandler = middleware.RequestLogging(a.cfg.Log)(socketHTTPHandler)
	socketHTTPHandler = middleware.Recovery(a.cfg.Log)(socketHTTPHandler)
	a.socketHandler = socketHTTPHandler
	a.cfg.Log.Info("Websocket endpoint configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppServer() {
	a.mux = http.NewServeMux()
	a.mux.Handle("/health", a.healthHandler)
	a.mux.Handle("/ready", a.healthHandler)
	a.mux.Handle("/metrics", a.healthHandler)
	if a.socketHandler != nil {
		a.mux.Handle("/ws/", a.socketHandler)
	}
	a.mux.Handle("/", a.appHttpHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      a.mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	a.startWorkers(context.Background())

	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.stopWorkers()
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) startWorkers(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	a.cancel = cancel

	for _, w := range a.workers {
		a.wg.Add(1)
		go func(w contracts.Worker) {
			defer a.wg.Done()
			a.cfg.Log.Info("Starting background worker", "worker", w.Name())
			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.cfg.Log.Error("Background worker exited", "worker", w.Name(), "error", err)
			}
		}(w)
	}
}

// stopWorkers cancels the workers, waits for them up to the shutdown
// timeout and then closes the registered resources.
func (a *Application) stopWorkers() {
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(a.cfg.ShutdownTimeout):
		a.cfg.Log.Warn("Background workers did not stop in time")
	}

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.cfg.Log.Error("Failed to close resource", "error", err)
		}
	}
	a.closers = nil

	if a.idempotencyStore != nil {
		a.idempotencyStore.Stop()
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Error("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Stopping background workers...")
	a.stopWorkers()
	a.cfg.Log.Info("Background workers stopped")

	a.cfg.GracefulShutdown()
	a.cfg.Log.Info("Server stopped gracefully")
}
