package wallet

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and local development.
// A single mutex serializes Update calls, matching the atomicity contract.
type MemoryRepository struct {
	mu      sync.Mutex
	wallets map[string]Wallet
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{wallets: make(map[string]Wallet)}
}

func (r *MemoryRepository) Get(ctx context.Context, userID string) (Wallet, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	return w, ok, nil
}

func (r *MemoryRepository) Create(ctx context.Context, w Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wallets[w.UserID]; ok {
		return nil
	}
	r.wallets[w.UserID] = w
	return nil
}

func (r *MemoryRepository) Update(ctx context.Context, userID string, fn UpdateFunc) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[userID]
	if !ok {
		w = Wallet{UserID: userID}
	}
	if err := fn(&w, ok); err != nil {
		return Wallet{}, err
	}
	r.wallets[userID] = w
	return w, nil
}
