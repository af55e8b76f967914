package prefs

import (
	"context"
	"sync"
)

type MemoryRepository struct {
	mu       sync.Mutex
	profiles map[string]Profile
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: make(map[string]Profile)}
}

func (r *MemoryRepository) Get(ctx context.Context, userID string) (Profile, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	return p, ok, nil
}

func (r *MemoryRepository) Upsert(ctx context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.profiles[p.UserID]; ok {
		p.CreatedAt = prev.CreatedAt
	}
	r.profiles[p.UserID] = p
	return nil
}
