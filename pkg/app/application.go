package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"innkeep/internal/reservations/pipeline"
	"innkeep/pkg/cache"
	"innkeep/pkg/config"
	"innkeep/pkg/contracts"
	"innkeep/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

// Application owns the HTTP server and the reservation pipeline lifecycle.
// Shutdown order matters: stop accepting requests first, then drain the
// pipeline, then run the registered cleanups (broker, stores, clients).
type Application struct {
	cfg            *config.Config
	server         *http.Server
	pipe           *pipeline.Pipeline
	cleanups       []func()
	healthHandler  http.Handler
	appHTTPHandler http.Handler
}

func NewApplication() *Application {
	return &Application{}
}

// OnShutdown registers a cleanup to run after the server and pipeline stop,
// in registration order.
func (a *Application) OnShutdown(fn func()) {
	a.cleanups = append(a.cleanups, fn)
}

func (a *Application) SetApp(cfg *config.Config, appHandler, healthHandler contracts.Handler, pipe *pipeline.Pipeline, idemStore cache.Store) {
	a.cfg = cfg
	a.pipe = pipe
	a.setHealthHandler(cfg, healthHandler)
	a.setAppHandler(cfg, appHandler, idemStore)
	a.setAppServer()
}

func (a *Application) setHealthHandler(cfg *config.Config, healthHandler contracts.Handler) {
	healthRouter := httprouter.New()
	healthHandler.RegisterRoutes(healthRouter)

	var h http.Handler = healthRouter
	h = middleware.RequestLogging(cfg.Log)(h)
	h = middleware.Recovery(cfg.Log)(h)
	a.healthHandler = h
}

func (a *Application) setAppHandler(cfg *config.Config, appHandler contracts.Handler, idemStore cache.Store) {
	appRouter := httprouter.New()
	appHandler.RegisterRoutes(appRouter)

	var h http.Handler = appRouter
	h = middleware.Idempotency(idemStore, cfg.IdempotencyTTL, cfg.Log)(h)
	h = middleware.RequestTimeout(cfg.RequestTimeout)(h)
	h = middleware.ContentTypeValidation(cfg.Log)(h)
	h = middleware.RequestLogging(cfg.Log)(h)
	h = middleware.Recovery(cfg.Log)(h)
	a.appHTTPHandler = h
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHTTPHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	a.pipe.Start(context.Background())

	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
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

	a.cfg.Log.Info("Stopping reservation pipeline...")
	a.pipe.Stop()

	for _, cleanup := range a.cleanups {
		cleanup()
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
