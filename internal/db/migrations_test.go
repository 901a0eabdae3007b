package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
)

func TestMigrations_Annotated(t *testing.T) {
	names, err := fs.Glob(Migrations, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("no migrations embedded")
	}

	var last int64
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			version, err := goose.NumericComponent(name)
			if err != nil {
				t.Fatalf("version: %v", err)
			}
			if version <= last {
				t.Errorf("version %d not after %d", version, last)
			}
			last = version

			b, err := fs.ReadFile(Migrations, name)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			body := string(b)
			up := strings.Index(body, "-- +goose Up")
			down := strings.Index(body, "-- +goose Down")
			if up < 0 || down < 0 {
				t.Fatalf("missing goose annotations (up=%d down=%d)", up, down)
			}
			if down < up {
				t.Errorf("Down section precedes Up")
			}
		})
	}
}

func TestMigrations_CoverStores(t *testing.T) {
	var all strings.Builder
	names, _ := fs.Glob(Migrations, "*.sql")
	for _, name := range names {
		b, err := fs.ReadFile(Migrations, name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		all.Write(b)
	}
	for _, table := range []string{"accounts", "coin_accounts", "coin_transactions", "whitelist_entries", "grant_incidents"} {
		if !strings.Contains(all.String(), "CREATE TABLE IF NOT EXISTS "+table+" (") {
			t.Errorf("no migration creates %s", table)
		}
	}
}
