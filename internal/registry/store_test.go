package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/inaiurai/whitelist/internal/errs"
)

// ---------------------------------------------------------------------------
// Store contract, run against every in-process backend.
// ---------------------------------------------------------------------------

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newRedisStore(t *testing.T) Store {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:")
}

func TestStores(t *testing.T) {
	backends := []struct {
		name string
		new  func(t *testing.T) Store
	}{
		{"memory", func(*testing.T) Store { return NewMemoryStore() }},
		{"redis", newRedisStore},
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			t.Run("upsert replace", func(t *testing.T) { testUpsertReplace(t, b.new(t)) })
			t.Run("upsert extend", func(t *testing.T) { testUpsertExtend(t, b.new(t)) })
			t.Run("delete", func(t *testing.T) { testDelete(t, b.new(t)) })
			t.Run("list", func(t *testing.T) { testList(t, b.new(t)) })
			t.Run("concurrent extend", func(t *testing.T) { testConcurrentExtend(t, b.new(t)) })
		})
	}
}

func upsert(t *testing.T, s Store, uid, region string, now time.Time, d time.Duration, p ExtensionPolicy) Record {
	t.Helper()
	rec, err := s.Upsert(context.Background(), UpsertParams{UID: uid, Region: region, Now: now, Duration: d, Policy: p})
	if err != nil {
		t.Fatalf("Upsert(%s/%s): %v", region, uid, err)
	}
	return rec
}

func testUpsertReplace(t *testing.T, s Store) {
	first := upsert(t, s, "555", "BD", t0, 24*time.Hour, PolicyReplace)
	if !first.ExpiresAt.Equal(t0.Add(24 * time.Hour)) {
		t.Fatalf("first expiry: got %v", first.ExpiresAt)
	}

	now2 := t0.Add(2 * time.Hour)
	second := upsert(t, s, "555", "BD", now2, time.Hour, PolicyReplace)
	if want := now2.Add(time.Hour); !second.ExpiresAt.Equal(want) {
		t.Errorf("replace expiry: got %v, want %v", second.ExpiresAt, want)
	}

	got, err := s.Get(context.Background(), "555", "BD")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.ExpiresAt.Equal(second.ExpiresAt) {
		t.Errorf("stored expiry: got %v, want %v", got.ExpiresAt, second.ExpiresAt)
	}
}

func testUpsertExtend(t *testing.T, s Store) {
	upsert(t, s, "u1", "EU", t0, 24*time.Hour, PolicyExtend)
	ext := upsert(t, s, "u1", "EU", t0.Add(time.Hour), time.Hour, PolicyExtend)
	if want := t0.Add(25 * time.Hour); !ext.ExpiresAt.Equal(want) {
		t.Errorf("extend active: got %v, want %v", ext.ExpiresAt, want)
	}

	late := t0.Add(48 * time.Hour)
	renewed := upsert(t, s, "u1", "EU", late, time.Hour, PolicyExtend)
	if want := late.Add(time.Hour); !renewed.ExpiresAt.Equal(want) {
		t.Errorf("extend expired: got %v, want %v", renewed.ExpiresAt, want)
	}
}

func testDelete(t *testing.T, s Store) {
	ctx := context.Background()
	upsert(t, s, "u1", "PK", t0, time.Hour, PolicyReplace)

	removed, err := s.Delete(ctx, "u1", "PK")
	if err != nil || !removed {
		t.Fatalf("first delete: removed=%v err=%v", removed, err)
	}
	removed, err = s.Delete(ctx, "u1", "PK")
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}
	if _, err := s.Get(ctx, "u1", "PK"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get after delete: expected ErrNotFound, got %v", err)
	}
	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("List after delete: got %d records", len(all))
	}
}

func testList(t *testing.T, s Store) {
	ctx := context.Background()
	upsert(t, s, "a", "BD", t0, time.Hour, PolicyReplace)
	upsert(t, s, "b", "BD", t0, time.Hour, PolicyReplace)
	upsert(t, s, "a", "VN", t0, time.Hour, PolicyReplace)

	all, err := s.List(ctx, "")
	if err != nil || len(all) != 3 {
		t.Fatalf("List all: got %d err=%v", len(all), err)
	}
	bd, err := s.List(ctx, "BD")
	if err != nil || len(bd) != 2 {
		t.Fatalf("List BD: got %d err=%v", len(bd), err)
	}
	for _, r := range bd {
		if r.Region != "BD" {
			t.Errorf("List BD returned %s/%s", r.Region, r.UID)
		}
	}
	byUID, err := s.ListByUID(ctx, "a")
	if err != nil || len(byUID) != 2 {
		t.Fatalf("ListByUID: got %d err=%v", len(byUID), err)
	}
	none, err := s.List(ctx, "TW")
	if err != nil || len(none) != 0 {
		t.Fatalf("List TW: got %d err=%v", len(none), err)
	}
}

// Every extend on one key must observe the previous write.
func testConcurrentExtend(t *testing.T, s Store) {
	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Upsert(context.Background(), UpsertParams{
				UID: "hot", Region: "ID", Now: t0, Duration: time.Hour, Policy: PolicyExtend,
			})
			if err != nil {
				t.Errorf("Upsert: %v", err)
			}
		}()
	}
	// Unrelated keys proceed alongside.
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := fmt.Sprintf("cold-%d", i)
			if _, err := s.Upsert(context.Background(), UpsertParams{
				UID: uid, Region: "TH", Now: t0, Duration: time.Hour, Policy: PolicyReplace,
			}); err != nil {
				t.Errorf("Upsert(%s): %v", uid, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Get(context.Background(), "hot", "ID")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if want := t0.Add(n * time.Hour); !got.ExpiresAt.Equal(want) {
		t.Errorf("hot key expiry: got %v, want %v", got.ExpiresAt, want)
	}
	th, _ := s.List(context.Background(), "TH")
	if len(th) != n {
		t.Errorf("TH entries: got %d, want %d", len(th), n)
	}
}
