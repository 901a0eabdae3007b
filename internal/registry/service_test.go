package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inaiurai/whitelist/internal/clock"
	"github.com/inaiurai/whitelist/internal/errs"
)

func newTestService(policy ExtensionPolicy) (Service, *clock.Manual) {
	clk := clock.NewManual(t0)
	cfg := DefaultConfig()
	cfg.Policy = policy
	return NewService(NewMemoryStore(), clk, cfg, nil), clk
}

func TestUpsert_NewEntryIsActive(t *testing.T) {
	svc, _ := newTestService(PolicyReplace)
	e, err := svc.Upsert(context.Background(), "555", "bd", 24*time.Hour)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if e.UID != "555" || e.Region != "BD" {
		t.Errorf("key: got %s/%s", e.Region, e.UID)
	}
	if e.Status != StatusActive || e.TimeRemaining != 24*3600 {
		t.Errorf("derived fields: status=%s remaining=%d", e.Status, e.TimeRemaining)
	}
	if e.Expiry != t0.Add(24*time.Hour).Unix() {
		t.Errorf("expiry: got %d", e.Expiry)
	}
}

func TestUpsert_Validation(t *testing.T) {
	svc, _ := newTestService(PolicyReplace)
	cases := []struct {
		name   string
		uid    string
		region string
		d      time.Duration
	}{
		{"empty uid", "  ", "BD", time.Hour},
		{"unknown region", "u", "XX", time.Hour},
		{"empty region", "u", "", time.Hour},
		{"zero duration", "u", "BD", 0},
		{"below minimum", "u", "BD", 30 * time.Minute},
		{"above maximum", "u", "BD", 721 * time.Hour},
		{"fractional seconds", "u", "BD", time.Hour + 500*time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Upsert(context.Background(), tc.uid, tc.region, tc.d)
			if !errors.Is(err, errs.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
	all, _ := svc.ListAll(context.Background())
	if len(all) != 0 {
		t.Errorf("rejected upserts must not write, got %d entries", len(all))
	}
}

func TestStatus_MonotonicUnderClockAdvance(t *testing.T) {
	svc, clk := newTestService(PolicyReplace)
	ctx := context.Background()
	if _, err := svc.Upsert(ctx, "u", "NA", time.Hour); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	steps := []struct {
		advance   time.Duration
		status    string
		remaining int64
	}{
		{0, StatusActive, 3600},
		{59 * time.Minute, StatusActive, 60},
		{59 * time.Second, StatusActive, 1},
		{time.Second, StatusExpired, 0},
		{time.Hour, StatusExpired, 0},
	}
	prev := int64(1 << 62)
	for i, st := range steps {
		clk.Advance(st.advance)
		e, err := svc.Get(ctx, "u", "NA")
		if err != nil {
			t.Fatalf("step %d Get: %v", i, err)
		}
		if e.Status != st.status || e.TimeRemaining != st.remaining {
			t.Errorf("step %d: got %s/%d, want %s/%d", i, e.Status, e.TimeRemaining, st.status, st.remaining)
		}
		if e.TimeRemaining > prev {
			t.Errorf("step %d: time remaining increased from %d to %d", i, prev, e.TimeRemaining)
		}
		prev = e.TimeRemaining
	}

	// Expired entries stay visible until removed.
	all, _ := svc.ListAll(ctx)
	if len(all) != 1 || all[0].Status != StatusExpired {
		t.Errorf("expired entry should remain listed, got %+v", all)
	}
}

func TestUpsert_ReplaceOverwritesExpiry(t *testing.T) {
	svc, clk := newTestService(PolicyReplace)
	ctx := context.Background()
	if _, err := svc.Upsert(ctx, "555", "BD", 24*time.Hour); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	clk.Advance(3 * time.Hour)
	e, err := svc.Upsert(ctx, "555", "BD", time.Hour)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if want := clk.Now().Add(time.Hour).Unix(); e.Expiry != want {
		t.Errorf("expiry: got %d, want %d", e.Expiry, want)
	}
	if e.TimeRemaining != 3600 {
		t.Errorf("time remaining: got %d, want 3600", e.TimeRemaining)
	}
}

func TestUpsert_ExtendAddsToActiveEntry(t *testing.T) {
	svc, clk := newTestService(PolicyExtend)
	ctx := context.Background()
	if _, err := svc.Upsert(ctx, "555", "BD", 24*time.Hour); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	clk.Advance(3 * time.Hour)
	e, err := svc.Upsert(ctx, "555", "BD", time.Hour)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if want := t0.Add(25 * time.Hour).Unix(); e.Expiry != want {
		t.Errorf("expiry: got %d, want %d", e.Expiry, want)
	}
}

func TestRemove_Idempotent(t *testing.T) {
	svc, _ := newTestService(PolicyReplace)
	ctx := context.Background()
	if _, err := svc.Upsert(ctx, "u", "BR", time.Hour); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	removed, err := svc.Remove(ctx, "u", "br")
	if err != nil || !removed {
		t.Fatalf("first remove: removed=%v err=%v", removed, err)
	}
	removed, err = svc.Remove(ctx, "u", "BR")
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if removed {
		t.Error("second remove should report nothing deleted")
	}
	if _, err := svc.Get(ctx, "u", "BR"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get after remove: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Remove(ctx, "u", "nowhere"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("remove with unknown region: expected ErrInvalidArgument, got %v", err)
	}
}

func TestListing(t *testing.T) {
	svc, clk := newTestService(PolicyReplace)
	ctx := context.Background()
	for _, g := range []struct {
		uid, region string
		d           time.Duration
	}{
		{"b", "BD", 2 * time.Hour},
		{"a", "BD", time.Hour},
		{"a", "VN", 10 * time.Hour},
	} {
		if _, err := svc.Upsert(ctx, g.uid, g.region, g.d); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	clk.Advance(90 * time.Minute)

	all, err := svc.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListAll: got %d entries", len(all))
	}
	if all[0].Region != "BD" || all[0].UID != "a" || all[1].UID != "b" || all[2].Region != "VN" {
		t.Errorf("ListAll order: %+v", all)
	}
	if all[0].Status != StatusExpired || all[1].Status != StatusActive {
		t.Errorf("derived status: %+v", all)
	}

	bd, err := svc.ListByRegion(ctx, "bd")
	if err != nil || len(bd) != 2 {
		t.Fatalf("ListByRegion: got %d err=%v", len(bd), err)
	}
	if _, err := svc.ListByRegion(ctx, "ZZ"); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Errorf("unknown region: expected ErrInvalidArgument, got %v", err)
	}

	mine, err := svc.FindByUID(ctx, "a")
	if err != nil || len(mine) != 2 {
		t.Fatalf("FindByUID: got %d err=%v", len(mine), err)
	}

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Total != 3 || st.Active != 2 || st.Expired != 1 {
		t.Errorf("stats: %+v", st)
	}
	if st.ByRegion["BD"] != 2 || st.ByRegion["VN"] != 1 {
		t.Errorf("stats by region: %v", st.ByRegion)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]ExtensionPolicy{
		"":         PolicyReplace,
		"replace":  PolicyReplace,
		" Extend ": PolicyExtend,
	} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("add"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
