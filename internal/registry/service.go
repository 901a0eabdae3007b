package registry

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/inaiurai/whitelist/internal/clock"
	"github.com/inaiurai/whitelist/internal/errs"
	"github.com/inaiurai/whitelist/internal/region"
)

// Store persists records keyed by (uid, region). Upsert must read the current
// expiry and write the new one atomically for that key. Get returns
// errs.ErrNotFound on a miss. List with region "" returns every record.
type Store interface {
	Upsert(ctx context.Context, p UpsertParams) (Record, error)
	Delete(ctx context.Context, uid, region string) (bool, error)
	Get(ctx context.Context, uid, region string) (Record, error)
	List(ctx context.Context, region string) ([]Record, error)
	ListByUID(ctx context.Context, uid string) ([]Record, error)
}

type Config struct {
	MinDuration time.Duration
	MaxDuration time.Duration
	Policy      ExtensionPolicy
}

func DefaultConfig() Config {
	return Config{MinDuration: time.Hour, MaxDuration: 720 * time.Hour, Policy: PolicyReplace}
}

type Service interface {
	// Validate normalizes and checks a grant request without touching the store.
	Validate(uid, region string, d time.Duration) (Key, error)
	Upsert(ctx context.Context, uid, region string, d time.Duration) (Entry, error)
	Remove(ctx context.Context, uid, region string) (bool, error)
	Get(ctx context.Context, uid, region string) (Entry, error)
	ListAll(ctx context.Context) ([]Entry, error)
	ListByRegion(ctx context.Context, region string) ([]Entry, error)
	FindByUID(ctx context.Context, uid string) ([]Entry, error)
	Stats(ctx context.Context) (Stats, error)
}

type service struct {
	store Store
	clock clock.Clock
	cfg   Config
	log   *slog.Logger
}

func NewService(store Store, clk clock.Clock, cfg Config, log *slog.Logger) Service {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyReplace
	}
	return &service{store: store, clock: clk, cfg: cfg, log: log}
}

var _ Service = (*service)(nil)

func normalizeKey(uid, code string) (Key, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return Key{}, errs.Invalid("uid", "is required")
	}
	code = region.Normalize(code)
	if !region.Valid(code) {
		return Key{}, errs.Invalid("region", "unknown region %q", code)
	}
	return Key{UID: uid, Region: code}, nil
}

func (s *service) Validate(uid, code string, d time.Duration) (Key, error) {
	k, err := normalizeKey(uid, code)
	if err != nil {
		return Key{}, err
	}
	if d <= 0 || d%time.Second != 0 {
		return Key{}, errs.Invalid("duration", "must be a positive whole number of seconds")
	}
	if d < s.cfg.MinDuration || d > s.cfg.MaxDuration {
		return Key{}, errs.Invalid("duration", "must be between %s and %s", s.cfg.MinDuration, s.cfg.MaxDuration)
	}
	return k, nil
}

func (s *service) Upsert(ctx context.Context, uid, code string, d time.Duration) (Entry, error) {
	k, err := s.Validate(uid, code, d)
	if err != nil {
		return Entry{}, err
	}
	now := s.clock.Now()
	rec, err := s.store.Upsert(ctx, UpsertParams{
		UID:      k.UID,
		Region:   k.Region,
		Now:      now,
		Duration: d,
		Policy:   s.cfg.Policy,
	})
	if err != nil {
		return Entry{}, err
	}
	s.log.Debug("whitelist entry upserted", "uid", k.UID, "region", k.Region, "expiry", rec.ExpiresAt.Unix(), "policy", s.cfg.Policy)
	return rec.At(now), nil
}

// Remove is idempotent: a missing entry reports false with no error.
func (s *service) Remove(ctx context.Context, uid, code string) (bool, error) {
	k, err := normalizeKey(uid, code)
	if err != nil {
		return false, err
	}
	removed, err := s.store.Delete(ctx, k.UID, k.Region)
	if err != nil {
		return false, err
	}
	if removed {
		s.log.Info("whitelist entry removed", "uid", k.UID, "region", k.Region)
	}
	return removed, nil
}

func (s *service) Get(ctx context.Context, uid, code string) (Entry, error) {
	k, err := normalizeKey(uid, code)
	if err != nil {
		return Entry{}, err
	}
	rec, err := s.store.Get(ctx, k.UID, k.Region)
	if err != nil {
		return Entry{}, err
	}
	return rec.At(s.clock.Now()), nil
}

func (s *service) ListAll(ctx context.Context) ([]Entry, error) {
	recs, err := s.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	return derive(recs, s.clock.Now()), nil
}

func (s *service) ListByRegion(ctx context.Context, code string) ([]Entry, error) {
	code = region.Normalize(code)
	if !region.Valid(code) {
		return nil, errs.Invalid("region", "unknown region %q", code)
	}
	recs, err := s.store.List(ctx, code)
	if err != nil {
		return nil, err
	}
	return derive(recs, s.clock.Now()), nil
}

func (s *service) FindByUID(ctx context.Context, uid string) ([]Entry, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil, errs.Invalid("uid", "is required")
	}
	recs, err := s.store.ListByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return derive(recs, s.clock.Now()), nil
}

func (s *service) Stats(ctx context.Context) (Stats, error) {
	recs, err := s.store.List(ctx, "")
	if err != nil {
		return Stats{}, err
	}
	now := s.clock.Now()
	st := Stats{ByRegion: make(map[string]int)}
	for _, r := range recs {
		st.Total++
		st.ByRegion[r.Region]++
		if r.At(now).Active() {
			st.Active++
		} else {
			st.Expired++
		}
	}
	return st, nil
}

// derive computes every entry against the same reading and orders by region then uid.
func derive(recs []Record, now time.Time) []Entry {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Region != recs[j].Region {
			return recs[i].Region < recs[j].Region
		}
		return recs[i].UID < recs[j].UID
	})
	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.At(now))
	}
	return out
}
