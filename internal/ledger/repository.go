package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgNumericOutOfRange is raised when bigint arithmetic overflows.
const pgNumericOutOfRange = "22003"

// Repository is the Postgres-backed ledger store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Balance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT balance FROM coin_accounts WHERE account_id = $1`, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

// Credit upserts the account row and appends the transaction in one database transaction.
func (r *Repository) Credit(ctx context.Context, t *Transaction) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `
		INSERT INTO coin_accounts (account_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE
		SET balance = coin_accounts.balance + EXCLUDED.balance, updated_at = now()
		RETURNING balance
	`, t.AccountID, t.Amount).Scan(&balance)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgNumericOutOfRange {
			return 0, errBalanceOverflow()
		}
		return 0, fmt.Errorf("credit account: %w", err)
	}
	t.BalanceAfter = balance
	if err := insertTransaction(ctx, tx, t); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

// Debit runs the balance check and the decrement as one conditional UPDATE, so
// two concurrent debits can never both pass the check on a stale balance.
func (r *Repository) Debit(ctx context.Context, t *Transaction) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `
		UPDATE coin_accounts
		SET balance = balance - $1, updated_at = now()
		WHERE account_id = $2 AND balance >= $1
		RETURNING balance
	`, t.Amount, t.AccountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		current, berr := r.Balance(ctx, t.AccountID)
		if berr != nil {
			return 0, berr
		}
		return current, ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("debit account: %w", err)
	}
	t.BalanceAfter = balance
	if err := insertTransaction(ctx, tx, t); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return balance, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO coin_transactions (id, account_id, kind, action, reason, amount, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.AccountID, t.Kind, t.Action, t.Reason, t.Amount, t.BalanceAfter, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert coin transaction: %w", err)
	}
	return nil
}

// History returns the newest transactions first. LIMIT NULL returns every row.
func (r *Repository) History(ctx context.Context, accountID uuid.UUID, limit int) ([]*Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, kind, action, reason, amount, balance_after, created_at
		FROM coin_transactions WHERE account_id = $1
		ORDER BY seq DESC
		LIMIT NULLIF($2, 0)
	`, accountID, max(limit, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Kind, &t.Action, &t.Reason, &t.Amount, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &t)
	}
	return list, rows.Err()
}
