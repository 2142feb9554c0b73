// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/studynotes/internal/api"
	"github.com/starford/studynotes/internal/datastore"
	"github.com/starford/studynotes/internal/mcpserver"
	"github.com/starford/studynotes/internal/orphans"
	"github.com/starford/studynotes/internal/sse"
	"github.com/starford/studynotes/internal/tracing"
)

// Run starts the HTTP server and the orphan sweeper with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.setupLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.Bool("redis", cfg.Redis.Enabled()),
		slog.Bool("tracing", cfg.Tracing.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     app.version,
		Insecure:    cfg.Tracing.Insecure,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}()

	// SSE broker.
	broker := sse.NewBroker(25 * time.Second)
	defer broker.Close()

	deps, err := newComponents(ctx, cfg, broker)
	if err != nil {
		return err
	}
	defer deps.Close()

	httpServer := &http.Server{
		Addr:         cfg.App.HTTP.Address(),
		Handler:      newHandler(cfg, deps, broker),
		ReadTimeout:  cfg.App.HTTP.ReadTimeout,
		WriteTimeout: cfg.App.HTTP.WriteTimeout,
		IdleTimeout:  cfg.App.HTTP.IdleTimeout,
	}

	sweeper := newSweeper(cfg, deps)

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Retry removals of objects left behind by failed uploads and deletes.
	g.Go(func() error {
		return sweeper.Run(gCtx)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Event streams never finish on their own.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	err = g.Wait()
	drain(ctx, sweeper)
	if err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the sweeper stops with the server.
var errShutdown = errors.New("shutdown")

// newHandler builds the root handler: probes, the API, the fs bucket and
// the middleware stack around them.
func newHandler(cfg *Config, deps *components, broker *sse.Broker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.db.Ping(r.Context()); err != nil {
			slog.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	if deps.files != nil {
		r.Handle(filesPrefix+"/*", http.StripPrefix(filesPrefix, deps.files))
	}

	r.Mount("/", api.NewRouter(deps.notes, deps.idp, broker))

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.App.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	return otelhttp.NewHandler(c.Handler(r), "studynotes",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health/live" && r.URL.Path != "/health/ready"
		}))
}

func writeStatus(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, s)
}

// Migrate applies pending database migrations and exits.
func Migrate(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.setupLogger()
	cfg := app.config

	db, err := datastore.Open(ctx, cfg.Database.Dialect(), cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer db.Close()

	logger.Info("Database is up to date", slog.String("driver", cfg.Database.Driver))
	return nil
}

// ServeMCP serves the MCP tools over stdio until stdin closes.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	app.setupLogger()

	deps, err := newComponents(ctx, app.config, nil)
	if err != nil {
		return err
	}
	defer deps.Close()

	return sweepWhile(ctx, newSweeper(app.config, deps), mcpserver.New(deps.notes, deps.idp, app.version).ServeStdio)
}

func newSweeper(cfg *Config, deps *components) *orphans.Sweeper {
	return &orphans.Sweeper{
		Queue:       deps.queue,
		Bucket:      deps.bucket,
		Interval:    cfg.Orphans.Interval,
		MaxAttempts: cfg.Orphans.MaxAttempts,
	}
}

// sweepWhile runs the sweeper for as long as serve runs.
func sweepWhile(ctx context.Context, sweeper *orphans.Sweeper, serve func() error) error {
	sweepCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sweeper.Run(sweepCtx)
	}()

	err := serve()
	stop()
	<-done
	drain(ctx, sweeper)
	return err
}

func drain(ctx context.Context, sweeper *orphans.Sweeper) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	sweeper.Drain(ctx)
}
