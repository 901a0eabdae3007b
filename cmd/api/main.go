package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"

	"github.com/inaiurai/whitelist/internal/auth"
	"github.com/inaiurai/whitelist/internal/clock"
	"github.com/inaiurai/whitelist/internal/config"
	"github.com/inaiurai/whitelist/internal/db"
	"github.com/inaiurai/whitelist/internal/grant"
	"github.com/inaiurai/whitelist/internal/handlers"
	"github.com/inaiurai/whitelist/internal/incident"
	"github.com/inaiurai/whitelist/internal/ledger"
	"github.com/inaiurai/whitelist/internal/logging"
	"github.com/inaiurai/whitelist/internal/metrics"
	"github.com/inaiurai/whitelist/internal/registry"
)

func main() {
	configPath := flag.String("config", os.Getenv("WHITELIST_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.ServiceName, cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	promRegistry := metrics.NewRegistry()
	clk := clock.System{}
	checks := map[string]handlers.HealthCheck{}

	// Postgres is needed when either the ledger/auth stores or the registry live there.
	var pool *pgxpool.Pool
	if cfg.Storage.Driver == "postgres" || cfg.RegistryBackend() == "postgres" {
		pool, err = db.Open(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running and database.url is correct", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		slog.Info("Connected to PostgreSQL database successfully!")

		if err := db.Migrate(ctx, pool, logger); err != nil {
			slog.Error("Schema migration failed", "error", err)
			os.Exit(1)
		}
		migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
		if err != nil {
			slog.Error("Failed to create River migrator", "error", err)
			os.Exit(1)
		}
		if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
			slog.Error("River migrate up failed", "error", err)
			os.Exit(1)
		}
		slog.Info("River migrations applied")
		checks["postgres"] = pool.Ping
	}

	// Ledger & Auth
	var (
		ledgerStore ledger.Store
		authStore   auth.Store
	)
	switch cfg.Storage.Driver {
	case "postgres":
		ledgerStore = ledger.NewRepository(pool)
		authStore = auth.NewRepository(pool)
	default:
		ledgerStore = ledger.NewMemoryRepository()
		authStore = auth.NewMemoryRepository()
		slog.Warn("Using in-memory storage; balances and accounts are lost on restart")
	}
	ledgerSvc := ledger.NewService(ledgerStore, clk, logger, ledger.NewMetrics(promRegistry))
	authSvc := auth.NewService(authStore, auth.Config{Secret: cfg.Auth.JWTSecret, TokenTTL: cfg.Auth.TokenTTL})

	// Registry
	var registryStore registry.Store
	switch cfg.RegistryBackend() {
	case "postgres":
		registryStore = registry.NewRepository(pool)
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("Cannot reach Redis", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		slog.Info("Connected to Redis", "addr", cfg.Redis.Addr)
		registryStore = registry.NewRedisStore(rdb, cfg.Redis.Prefix)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	default:
		registryStore = registry.NewMemoryStore()
	}
	policy, err := registry.ParsePolicy(cfg.Grant.ExtensionPolicy)
	if err != nil {
		slog.Error("Invalid extension policy", "error", err)
		os.Exit(1)
	}
	registrySvc := registry.NewService(registryStore, clk, registry.Config{
		MinDuration: cfg.Grant.MinDuration,
		MaxDuration: cfg.Grant.MaxDuration,
		Policy:      policy,
	}, logger)

	// Incidents: insert func is set after the River client is created.
	var riverClient *river.Client[pgx.Tx]
	var insertIncident grant.InsertIncidentFunc
	if pool != nil {
		workers := river.NewWorkers()
		river.AddWorker(workers, incident.NewGrantIncidentWorker(incident.NewRepository(pool), logger))

		riverClient, err = river.NewClient(riverpgxv5.New(pool), &river.Config{
			Queues: map[string]river.QueueConfig{
				river.QueueDefault: {MaxWorkers: 10},
			},
			Workers: workers,
			Logger:  logger,
		})
		if err != nil {
			slog.Error("Failed to create River client", "error", err)
			os.Exit(1)
		}
		insertIncident = func(ctx context.Context, args incident.GrantIncidentArgs) error {
			_, err := riverClient.Insert(ctx, args, nil)
			return err
		}
	} else {
		slog.Warn("No Postgres configured; incomplete grants are logged but not queued")
	}

	coordinator := grant.NewCoordinator(ledgerSvc, registrySvc, grant.Config{
		Cost:           cfg.Grant.Cost,
		IdempotencyTTL: cfg.Grant.IdempotencyTTL,
	}, clk, logger, grant.NewMetrics(promRegistry), insertIncident)

	api, err := newAPI(cfg, apiDeps{
		Auth:     authSvc,
		Ledger:   ledgerSvc,
		Registry: registrySvc,
		Grants:   coordinator,
		Checks:   checks,
		Metrics:  promRegistry,
	}, logger)
	if err != nil {
		slog.Error("Failed to build HTTP handler", "error", err)
		os.Exit(1)
	}

	// Start River client (processes incident jobs)
	var wg sync.WaitGroup
	if riverClient != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := riverClient.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("River client stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr, "storage", cfg.Storage.Driver, "registry", cfg.RegistryBackend())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	if riverClient != nil {
		if err := riverClient.Stop(shutdownCtx); err != nil {
			slog.Error("River stop failed", "error", err)
		}
	}
	wg.Wait()
}
