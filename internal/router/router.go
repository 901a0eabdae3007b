package router

import (
	"log/slog"
	"net/http"

	"github.com/inaiurai/whitelist/internal/handlers"
	"github.com/inaiurai/whitelist/internal/metrics"
	"github.com/inaiurai/whitelist/internal/middleware"
)

// Deps is everything the route table needs.
type Deps struct {
	Auth      *handlers.AuthHandler
	Whitelist *handlers.WhitelistHandler
	Coins     *handlers.CoinsHandler
	Sessions  middleware.TokenValidator
	MaxCredit int64

	Health      map[string]handlers.HealthCheck
	MetricsPath string
	Metrics     http.Handler
	HTTPMetrics *metrics.HTTP
	Logger      *slog.Logger
}

// New returns the API handler. Chain: RequestID -> Recover -> Logging -> mux.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	// Public.
	mux.HandleFunc("POST /api/auth/register", d.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", d.Auth.Login)
	mux.HandleFunc("GET /api/regions", handlers.ListRegions)
	mux.Handle("GET /healthz", handlers.Health(d.Health))
	if d.Metrics != nil && d.MetricsPath != "" {
		mux.Handle("GET "+d.MetricsPath, d.Metrics)
	}

	// Session required.
	session := middleware.SessionAuth(d.Sessions)
	authed := func(h http.HandlerFunc) http.Handler { return session(h) }

	mux.Handle("POST /api/whitelist/add", authed(d.Whitelist.Add))
	mux.Handle("POST /api/whitelist/remove", authed(d.Whitelist.Remove))
	mux.Handle("GET /api/whitelist/list", authed(d.Whitelist.List))
	mux.Handle("GET /api/whitelist/list/{region}", authed(d.Whitelist.ListByRegion))
	mux.Handle("POST /api/whitelist/check", authed(d.Whitelist.Check))

	mux.Handle("GET /api/coins/balance", authed(d.Coins.Balance))
	// POST /api/coins/add: Auth -> CreditLimit -> Add
	var credit http.Handler = http.HandlerFunc(d.Coins.Add)
	if d.MaxCredit > 0 {
		credit = middleware.CreditLimit(d.MaxCredit)(credit)
	}
	mux.Handle("POST /api/coins/add", session(credit))
	mux.Handle("GET /api/coins/history", authed(d.Coins.History))
	mux.Handle("GET /api/stats", authed(d.Coins.Stats))

	var h http.Handler = mux
	h = middleware.Logging(d.Logger, d.HTTPMetrics)(h)
	h = middleware.Recover(d.Logger)(h)
	h = middleware.RequestID(h)
	return h
}
