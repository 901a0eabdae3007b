package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inaiurai/whitelist/internal/errs"
)

// Repository is the Postgres-backed registry store. The (uid, region) primary
// key gives per-key linearizability through row locks.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Upsert evaluates the extension policy inside the ON CONFLICT clause so the
// read of the old expiry and the write of the new one happen under one row lock.
func (r *Repository) Upsert(ctx context.Context, p UpsertParams) (Record, error) {
	rec := Record{UID: p.UID, Region: p.Region}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO whitelist_entries (uid, region, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (uid, region) DO UPDATE SET
			expires_at = CASE
				WHEN $5 = 'extend' AND whitelist_entries.expires_at > $4
				THEN whitelist_entries.expires_at + (EXCLUDED.expires_at - EXCLUDED.created_at)
				ELSE EXCLUDED.expires_at
			END,
			updated_at = EXCLUDED.updated_at
		RETURNING expires_at
	`, p.UID, p.Region, p.Now.Add(p.Duration), p.Now, string(p.Policy)).Scan(&rec.ExpiresAt)
	if err != nil {
		return Record{}, fmt.Errorf("upsert whitelist entry: %w", err)
	}
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return rec, nil
}

func (r *Repository) Delete(ctx context.Context, uid, region string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM whitelist_entries WHERE uid = $1 AND region = $2`, uid, region)
	if err != nil {
		return false, fmt.Errorf("delete whitelist entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) Get(ctx context.Context, uid, region string) (Record, error) {
	rec := Record{UID: uid, Region: region}
	err := r.pool.QueryRow(ctx, `SELECT expires_at FROM whitelist_entries WHERE uid = $1 AND region = $2`, uid, region).
		Scan(&rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, errs.ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	return rec, nil
}

func (r *Repository) List(ctx context.Context, region string) ([]Record, error) {
	return r.query(ctx, `
		SELECT uid, region, expires_at FROM whitelist_entries
		WHERE $1 = '' OR region = $1
	`, region)
}

func (r *Repository) ListByUID(ctx context.Context, uid string) ([]Record, error) {
	return r.query(ctx, `SELECT uid, region, expires_at FROM whitelist_entries WHERE uid = $1`, uid)
}

func (r *Repository) query(ctx context.Context, sql string, arg string) ([]Record, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.UID, &rec.Region, &rec.ExpiresAt); err != nil {
			return nil, err
		}
		rec.ExpiresAt = rec.ExpiresAt.UTC()
		list = append(list, rec)
	}
	return list, rows.Err()
}
