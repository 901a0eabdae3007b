package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/inaiurai/whitelist/internal/clock"
	"github.com/inaiurai/whitelist/internal/errs"
)

const maxReasonLen = 64

// Store persists balances and the append-only transaction log. Credit and Debit
// fill in BalanceAfter on the passed transaction.
type Store interface {
	Balance(ctx context.Context, accountID uuid.UUID) (int64, error)
	Credit(ctx context.Context, tx *Transaction) (int64, error)
	Debit(ctx context.Context, tx *Transaction) (int64, error)
	History(ctx context.Context, accountID uuid.UUID, limit int) ([]*Transaction, error)
}

type Service interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
	Credit(ctx context.Context, accountID uuid.UUID, amount int64, reason string) (int64, *Transaction, error)
	Debit(ctx context.Context, accountID uuid.UUID, amount int64, reason string) (int64, *Transaction, error)
	GetHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]*Transaction, error)
}

type service struct {
	store   Store
	clock   clock.Clock
	log     *slog.Logger
	metrics *Metrics
}

func NewService(store Store, clk clock.Clock, log *slog.Logger, metrics *Metrics) Service {
	if clk == nil {
		clk = clock.System{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &service{store: store, clock: clk, log: log, metrics: metrics}
}

var _ Service = (*service)(nil)

func (s *service) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	if accountID == uuid.Nil {
		return 0, errs.Invalid("account", "is required")
	}
	return s.store.Balance(ctx, accountID)
}

// Credit adds amount to the account, creating it on first use.
func (s *service) Credit(ctx context.Context, accountID uuid.UUID, amount int64, reason string) (int64, *Transaction, error) {
	reason, err := validate(accountID, amount, reason)
	if err != nil {
		return 0, nil, err
	}
	tx := s.newTransaction(accountID, KindCredit, ActionCoinsAdd, reason, amount)
	balance, err := s.store.Credit(ctx, tx)
	if errors.Is(err, errs.ErrInvalidArgument) {
		s.log.Warn("coin credit rejected", "account_id", accountID, "amount", amount, "error", err)
		return 0, nil, err
	}
	if err != nil {
		s.log.Error("coin credit failed", "account_id", accountID, "amount", amount, "reason", reason, "error", err)
		return 0, nil, err
	}
	s.metrics.IncCredit(reason, amount)
	s.log.Info("coins credited", "account_id", accountID, "amount", amount, "reason", reason, "balance", balance)
	return balance, tx, nil
}

// Debit removes amount only if the balance covers it. A rejected debit returns
// *InsufficientFundsError and leaves balance and history unchanged.
func (s *service) Debit(ctx context.Context, accountID uuid.UUID, amount int64, reason string) (int64, *Transaction, error) {
	reason, err := validate(accountID, amount, reason)
	if err != nil {
		return 0, nil, err
	}
	tx := s.newTransaction(accountID, KindDebit, ActionWhitelistDebit, reason, amount)
	balance, err := s.store.Debit(ctx, tx)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			s.metrics.IncDebit("insufficient_funds")
			return balance, nil, &InsufficientFundsError{Balance: balance, Required: amount}
		}
		s.metrics.IncDebit("error")
		s.log.Error("coin debit failed", "account_id", accountID, "amount", amount, "error", err)
		return 0, nil, err
	}
	s.metrics.IncDebit("success")
	return balance, tx, nil
}

func (s *service) GetHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]*Transaction, error) {
	if accountID == uuid.Nil {
		return nil, errs.Invalid("account", "is required")
	}
	if limit < 0 {
		return nil, errs.Invalid("limit", "must not be negative")
	}
	list, err := s.store.History(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Transaction{}
	}
	return list, nil
}

func (s *service) newTransaction(accountID uuid.UUID, kind, action, reason string, amount int64) *Transaction {
	return &Transaction{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Action:    action,
		Reason:    reason,
		Amount:    amount,
		CreatedAt: s.clock.Now(),
	}
}

func validate(accountID uuid.UUID, amount int64, reason string) (string, error) {
	if accountID == uuid.Nil {
		return "", errs.Invalid("account", "is required")
	}
	if amount <= 0 {
		return "", errs.Invalid("amount", "must be a positive integer, got %d", amount)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", errs.Invalid("reason", "is required")
	}
	if len(reason) > maxReasonLen {
		return "", errs.Invalid("reason", "must be at most %d characters", maxReasonLen)
	}
	return reason, nil
}
