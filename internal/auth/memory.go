package auth

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

type memoryAccount struct {
	account Account
	hash    string
}

// MemoryRepository keeps accounts in process memory, keyed by normalized email.
type MemoryRepository struct {
	mu      sync.RWMutex
	byEmail map[string]memoryAccount
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byEmail: make(map[string]memoryAccount)}
}

var _ Store = (*MemoryRepository)(nil)

func (r *MemoryRepository) Create(_ context.Context, email, passwordHash, displayName string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[email]; ok {
		return nil, ErrDuplicateEmail
	}
	a := Account{ID: uuid.New(), Email: email, DisplayName: displayName, CreatedAt: now().UTC()}
	r.byEmail[email] = memoryAccount{account: a, hash: passwordHash}
	return &a, nil
}

func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*Account, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byEmail[email]
	if !ok {
		return nil, "", nil
	}
	a := m.account
	return &a, m.hash, nil
}
