package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/foundermafstat/mafcoach-gateway/internal/config"
	"github.com/foundermafstat/mafcoach-gateway/internal/credentials"
	"github.com/foundermafstat/mafcoach-gateway/internal/gateway"
	"github.com/foundermafstat/mafcoach-gateway/internal/policy"
	"github.com/foundermafstat/mafcoach-gateway/internal/ratelimit"
	"github.com/foundermafstat/mafcoach-gateway/internal/remote"
	"github.com/foundermafstat/mafcoach-gateway/internal/settings"
	"github.com/foundermafstat/mafcoach-gateway/internal/snapshot"
	"github.com/foundermafstat/mafcoach-gateway/internal/telemetry"
)

var version = "dev"

func main() {
	configDir := flag.String("config", "configs", "path to configuration directory")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	loader := config.NewLoader(*configDir, logger)
	if err := loader.Load(); err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := loader.Watch(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}
	cfg := loader.Config()

	// Connect to PostgreSQL. Without a database the gateway still runs: the
	// settings store and snapshots fall back to in-memory state.
	var settingsStore settings.Store
	var snapBacking snapshot.Store
	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err == nil {
		err = dbPool.Ping(context.Background())
	}
	if err != nil {
		logger.Warn("database not reachable, using in-memory stores (state is lost on restart)", "error", err)
		if dbPool != nil {
			dbPool.Close()
		}
		settingsStore = settings.NewMemStore()
		snapBacking = snapshot.NewMemStore()
	} else {
		logger.Info("database connected")
		defer dbPool.Close()
		settingsStore = settings.NewPGStore(dbPool)
		snapBacking = snapshot.NewPGStore(dbPool)
	}

	// Connect to Redis
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis not reachable (snapshot cache and rate limits disabled)", "error", err)
			rdb = nil
		} else {
			logger.Info("redis connected")
		}
	}

	metrics := telemetry.NewMetrics()

	// Ingestion policy gate, reloaded together with config
	gate := policy.NewGate(
		func() bool { return loader.Config().Policy.Enabled },
		func() string { return loader.Config().Policy.BundlePath },
		func() time.Duration { return loader.Config().Policy.EvaluationTimeout },
	)
	if err := gate.Load(); err != nil {
		logger.Warn("failed to load ingestion policies", "error", err)
	}
	loader.OnReload(func() {
		if err := gate.Load(); err != nil {
			logger.Error("failed to reload ingestion policies", "error", err)
		}
	})

	handler := gateway.NewHandler(
		credentials.NewResolver(settingsStore),
		remote.NewAttempter(
			&http.Client{Timeout: cfg.Remote.Timeout},
			cfg.Remote.BaseURL,
			cfg.Remote.APIVersion,
			metrics,
		),
		snapshot.NewCache(snapshot.NewCachedStore(snapBacking, rdb, cfg.Snapshot.CacheTTL), metrics),
		settingsStore,
		gate,
		ratelimit.NewIngestionQuota(rdb),
		loader.Config,
		metrics,
	)

	// Router setup
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(gateway.RequestID)
	r.Use(gateway.MetricsMiddleware(metrics))
	if cfg.RateLimit.Enabled {
		r.Use(ratelimit.Middleware(ratelimit.NewLimiter(rdb), cfg.RateLimit.RequestsPerMinute, metrics))
	}

	r.Get("/healthz", healthHandler)
	r.Mount("/", handler.Routes())

	// Metrics server on a separate port
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Telemetry.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics server starting", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway starting", "addr", addr, "version", version, "remote", cfg.Remote.BaseURL)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("gateway stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version,
	})
}
