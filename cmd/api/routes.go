package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/inaiurai/whitelist/internal/auth"
	"github.com/inaiurai/whitelist/internal/config"
	"github.com/inaiurai/whitelist/internal/handlers"
	"github.com/inaiurai/whitelist/internal/ledger"
	"github.com/inaiurai/whitelist/internal/metrics"
	"github.com/inaiurai/whitelist/internal/registry"
	"github.com/inaiurai/whitelist/internal/router"
	"github.com/inaiurai/whitelist/internal/validation"
)

type apiDeps struct {
	Auth     auth.Service
	Ledger   ledger.Service
	Registry registry.Service
	Grants   handlers.Granter
	Checks   map[string]handlers.HealthCheck
	Metrics  *prometheus.Registry
}

// newAPI builds the handlers, the route table and the CORS wrapper.
// Chain: CORS -> RequestID -> Recover -> Logging -> mux -> (SessionAuth -> CreditLimit) -> handler.
func newAPI(cfg *config.AppConfig, d apiDeps, logger *slog.Logger) (http.Handler, error) {
	validator, err := validation.New()
	if err != nil {
		return nil, fmt.Errorf("compile request schemas: %w", err)
	}

	api := router.New(router.Deps{
		Auth: &handlers.AuthHandler{
			Auth:      d.Auth,
			Validator: validator,
			Logger:    logger,
		},
		Whitelist: &handlers.WhitelistHandler{
			Grants:    d.Grants,
			Registry:  d.Registry,
			Validator: validator,
			Logger:    logger,
		},
		Coins: &handlers.CoinsHandler{
			Ledger:       d.Ledger,
			Registry:     d.Registry,
			Validator:    validator,
			HistoryLimit: cfg.History.DefaultLimit,
			Logger:       logger,
		},
		Sessions:    d.Auth,
		MaxCredit:   cfg.Coins.MaxCredit,
		Health:      d.Checks,
		MetricsPath: cfg.MetricsPath,
		Metrics:     metrics.Handler(d.Metrics),
		HTTPMetrics: metrics.NewHTTP(d.Metrics),
		Logger:      logger,
	})

	return cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", handlers.IdempotencyKeyHeader, "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	}).Handler(api), nil
}
