package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Create inserts a new account and returns the created Account.
func (r *Repository) Create(ctx context.Context, email, passwordHash, displayName string) (*Account, error) {
	a := Account{Email: email, DisplayName: displayName}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, password_hash, display_name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, email, passwordHash, displayName)
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &a, nil
}

// GetByEmail returns the account and password hash for login. Returns nil if not found.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Account, string, error) {
	var a Account
	var passwordHash string
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, display_name, created_at, password_hash
		FROM accounts WHERE email = $1
	`, email)
	if err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.CreatedAt, &passwordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", nil
		}
		return nil, "", err
	}
	return &a, passwordHash, nil
}
