package ledger

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"

)

// coinAccount is the guarded balance+log pair for one account.
type coinAccount struct {
	mu      sync.Mutex
	balance int64
	log     []Transaction
}

// MemoryRepository keeps balances and logs in process memory. Each account has
// its own mutex so operations on different accounts never contend.
type MemoryRepository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*coinAccount
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{accounts: make(map[uuid.UUID]*coinAccount)}
}

var _ Store = (*MemoryRepository)(nil)

func (r *MemoryRepository) lookup(id uuid.UUID) *coinAccount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.accounts[id]
}

func (r *MemoryRepository) lookupOrCreate(id uuid.UUID) *coinAccount {
	if acc := r.lookup(id); acc != nil {
		return acc
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		acc = &coinAccount{}
		r.accounts[id] = acc
	}
	return acc
}

func (r *MemoryRepository) Balance(_ context.Context, accountID uuid.UUID) (int64, error) {
	acc := r.lookup(accountID)
	if acc == nil {
		return 0, nil
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.balance, nil
}

func (r *MemoryRepository) Credit(_ context.Context, tx *Transaction) (int64, error) {
	acc := r.lookupOrCreate(tx.AccountID)
	acc.mu.Lock()
	defer acc.mu.Unlock()
	if tx.Amount > math.MaxInt64-acc.balance {
		return acc.balance, errBalanceOverflow()
	}
	acc.balance += tx.Amount
	tx.BalanceAfter = acc.balance
	acc.log = append(acc.log, *tx)
	return acc.balance, nil
}

// Debit checks and applies the debit under the account lock. On insufficient
// funds it returns the current balance and leaves balance and log untouched.
func (r *MemoryRepository) Debit(_ context.Context, tx *Transaction) (int64, error) {
	acc := r.lookup(tx.AccountID)
	if acc == nil {
		return 0, ErrInsufficientFunds
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	if acc.balance < tx.Amount {
		return acc.balance, ErrInsufficientFunds
	}
	acc.balance -= tx.Amount
	tx.BalanceAfter = acc.balance
	acc.log = append(acc.log, *tx)
	return acc.balance, nil
}

func (r *MemoryRepository) History(_ context.Context, accountID uuid.UUID, limit int) ([]*Transaction, error) {
	acc := r.lookup(accountID)
	if acc == nil {
		return nil, nil
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	n := len(acc.log)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*Transaction, 0, n)
	for i := len(acc.log) - 1; i >= 0 && len(out) < n; i-- {
		cp := acc.log[i]
		out = append(out, &cp)
	}
	return out, nil
}
