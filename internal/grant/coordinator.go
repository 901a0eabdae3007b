package grant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/inaiurai/whitelist/internal/clock"
	"github.com/inaiurai/whitelist/internal/errs"
	"github.com/inaiurai/whitelist/internal/incident"
	"github.com/inaiurai/whitelist/internal/ledger"
	"github.com/inaiurai/whitelist/internal/region"
	"github.com/inaiurai/whitelist/internal/registry"
)

// ErrGrantIncomplete means the debit committed but the entry was not written.
// The debit is not reversed.
var ErrGrantIncomplete = errors.New("grant incomplete: coins debited but whitelist entry not written")

// InsertIncidentFunc enqueues a grant incident. Provided by main using river.Client.Insert.
type InsertIncidentFunc func(ctx context.Context, args incident.GrantIncidentArgs) error

type Config struct {
	Cost           int64
	IdempotencyTTL time.Duration
}

func DefaultConfig() Config {
	return Config{Cost: 100, IdempotencyTTL: 24 * time.Hour}
}

type Request struct {
	Account        uuid.UUID
	UID            string
	Region         string
	Duration       time.Duration
	IdempotencyKey string
}

type Result struct {
	Entry       registry.Entry
	Balance     int64
	Transaction *ledger.Transaction
	// Replayed is set when the result came from the idempotency cache.
	Replayed bool
}

// Coordinator is the only writer that touches both the ledger and the registry.
type Coordinator struct {
	ledger         ledger.Service
	registry       registry.Service
	cfg            Config
	clock          clock.Clock
	log            *slog.Logger
	metrics        *Metrics
	insertIncident InsertIncidentFunc
	cache          *idempotencyCache
	group          singleflight.Group
}

// NewCoordinator builds a coordinator. insertIncident may be nil, in which case
// incomplete grants are only logged.
func NewCoordinator(l ledger.Service, r registry.Service, cfg Config, clk clock.Clock, log *slog.Logger, metrics *Metrics, insertIncident InsertIncidentFunc) *Coordinator {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Cost <= 0 {
		cfg.Cost = DefaultConfig().Cost
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = DefaultConfig().IdempotencyTTL
	}
	return &Coordinator{
		ledger:         l,
		registry:       r,
		cfg:            cfg,
		clock:          clk,
		log:            log,
		metrics:        metrics,
		insertIncident: insertIncident,
		cache:          newIdempotencyCache(cfg.IdempotencyTTL),
	}
}

func (c *Coordinator) Cost() int64 { return c.cfg.Cost }

// GrantWhitelist debits the configured cost and then upserts the entry.
// On insufficient funds nothing is written. With an idempotency key, a repeat
// of a successful grant returns the first result without a second debit.
func (c *Coordinator) GrantWhitelist(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if req.IdempotencyKey == "" {
		res, err := c.grant(ctx, req)
		c.observe(err, start)
		return res, err
	}

	cacheKey := req.Account.String() + "/" + req.IdempotencyKey
	fp := fingerprint(req)
	if res, ok, err := c.replay(cacheKey, fp); ok || err != nil {
		c.observeReplay(err, start)
		return res, err
	}

	// Callers joining the flight wait on the leader's work, so the leader's
	// cancellation must not fail their grants.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(cacheKey, func() (any, error) {
		if res, ok, err := c.replay(cacheKey, fp); ok || err != nil {
			return res, err
		}
		res, err := c.grant(flightCtx, req)
		if err != nil {
			return nil, err
		}
		c.cache.put(cacheKey, fp, *res, c.clock.Now())
		return res, nil
	})
	c.observe(err, start)
	if err != nil {
		return nil, err
	}
	res := *v.(*Result)
	return &res, nil
}

func (c *Coordinator) replay(cacheKey, fp string) (*Result, bool, error) {
	g, ok := c.cache.get(cacheKey, c.clock.Now())
	if !ok {
		return nil, false, nil
	}
	if g.fingerprint != fp {
		return nil, false, errs.Invalid("idempotency_key", "was already used for a different request")
	}
	res := g.result
	res.Entry = rederive(res.Entry, c.clock.Now())
	res.Replayed = true
	return &res, true, nil
}

func (c *Coordinator) grant(ctx context.Context, req Request) (*Result, error) {
	if req.Account == uuid.Nil {
		return nil, errs.Invalid("account", "is required")
	}
	key, err := c.registry.Validate(req.UID, req.Region, req.Duration)
	if err != nil {
		return nil, err
	}

	balance, tx, err := c.ledger.Debit(ctx, req.Account, c.cfg.Cost, ledger.ActionWhitelistDebit)
	if err != nil {
		return nil, err
	}

	entry, err := c.registry.Upsert(ctx, key.UID, key.Region, req.Duration)
	if err != nil {
		c.log.Error("whitelist grant incomplete: coins debited but entry not written",
			"account_id", req.Account,
			"uid", key.UID,
			"region", key.Region,
			"cost", c.cfg.Cost,
			"debit_tx_id", tx.ID,
			"error", err,
		)
		c.reportIncident(ctx, req.Account, key, tx, err)
		return nil, fmt.Errorf("%w: %w", ErrGrantIncomplete, err)
	}

	c.log.Info("whitelist granted",
		"account_id", req.Account,
		"uid", entry.UID,
		"region", entry.Region,
		"expiry", entry.Expiry,
		"cost", c.cfg.Cost,
		"balance", balance,
	)
	return &Result{Entry: entry, Balance: balance, Transaction: tx}, nil
}

// reportIncident enqueues the incident on a context detached from the request,
// since the caller may already have gone away.
func (c *Coordinator) reportIncident(ctx context.Context, account uuid.UUID, key registry.Key, tx *ledger.Transaction, cause error) {
	if c.insertIncident == nil {
		return
	}
	args := incident.GrantIncidentArgs{
		AccountID:  account,
		UID:        key.UID,
		Region:     key.Region,
		Cost:       c.cfg.Cost,
		DebitTxID:  tx.ID,
		Reason:     cause.Error(),
		OccurredAt: c.clock.Now(),
	}
	if err := c.insertIncident(context.WithoutCancel(ctx), args); err != nil {
		c.log.Error("enqueue grant incident failed", "debit_tx_id", tx.ID, "error", err)
	}
}

func (c *Coordinator) observe(err error, start time.Time) {
	c.metrics.Observe(classify(err), time.Since(start))
}

func (c *Coordinator) observeReplay(err error, start time.Time) {
	result := resultReplayed
	if err != nil {
		result = classify(err)
	}
	c.metrics.Observe(result, time.Since(start))
}

func classify(err error) string {
	switch {
	case err == nil:
		return resultSuccess
	case errors.Is(err, ErrGrantIncomplete):
		return resultIncomplete
	case errors.Is(err, errs.ErrInsufficientFunds):
		return resultInsufficientFunds
	case errors.Is(err, errs.ErrInvalidArgument):
		return resultInvalid
	default:
		return resultError
	}
}

// fingerprint identifies the grant a key was first used for.
func fingerprint(req Request) string {
	return fmt.Sprintf("%s|%s|%d", strings.TrimSpace(req.UID), region.Normalize(req.Region), int64(req.Duration/time.Second))
}
