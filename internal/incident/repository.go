package incident

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Recorder = (*Repository)(nil)

func (r *Repository) Record(ctx context.Context, a GrantIncidentArgs) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO grant_incidents (debit_tx_id, account_id, uid, region, cost, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (debit_tx_id) DO NOTHING
	`, a.DebitTxID, a.AccountID, a.UID, a.Region, a.Cost, a.Reason, a.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert grant incident: %w", err)
	}
	return nil
}
