// Command server runs the gridgate HTTP API: permission resolution, cell
// lock/hide transitions, grant management, and audit queries.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"

	"gridgate/internal/api"
	"gridgate/internal/config"
	internaldb "gridgate/internal/db"
	"gridgate/internal/db/repository"
	"gridgate/internal/metrics"
	"gridgate/internal/middleware"
	"gridgate/internal/service"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	for _, warning := range cfg.Warnings {
		logger.Warn(warning)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.DBPath, 0)
	if err != nil {
		return err
	}
	defer func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	}()

	if err := internaldb.RunMigrations(writeDB); err != nil {
		return err
	}

	m := metrics.New()

	// Repositories: all writes go through the single-connection write pool;
	// audit queries are read-only and use the read pool.
	grantRepo := repository.NewGrantRepo(writeDB)
	cellStateRepo := repository.NewCellStateRepo(writeDB)
	auditRepo := repository.NewAuditRepo(readDB)

	resolver := service.NewPermissionResolver(grantRepo, cfg.GrantCacheSize, cfg.GrantCacheTTL, m)
	cellStateSvc := service.NewCellStateService(resolver, cellStateRepo, m)
	grantSvc := service.NewGrantService(grantRepo, resolver)
	auditSvc := service.NewAuditService(auditRepo)

	handler := api.NewHandler(cellStateSvc, resolver, grantSvc, auditSvc, logger.With("component", "api"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.RateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	}))
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Auth([]byte(cfg.JWTSecret)))
		handler.Routes(r)
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http api listening", "addr", cfg.ListenAddr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
