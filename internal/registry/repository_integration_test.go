//go:build integration

package registry

import (
	"testing"

	"github.com/inaiurai/whitelist/internal/db/dbtest"
)

// Runs the store contract against Postgres. Requires DATABASE_URL:
//
//	DATABASE_URL=postgres://... go test -tags integration -p 1 ./internal/...
func TestRepository_StoreContract(t *testing.T) {
	pool := dbtest.Pool(t)
	newStore := func(t *testing.T) Store {
		dbtest.Truncate(t, pool, "whitelist_entries")
		return NewRepository(pool)
	}

	t.Run("upsert replace", func(t *testing.T) { testUpsertReplace(t, newStore(t)) })
	t.Run("upsert extend", func(t *testing.T) { testUpsertExtend(t, newStore(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("list", func(t *testing.T) { testList(t, newStore(t)) })
	t.Run("concurrent extend", func(t *testing.T) { testConcurrentExtend(t, newStore(t)) })
}
