package callstats

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-memory Repository for tests and local development.
type MemoryRepository struct {
	mu    sync.Mutex
	stats map[string]Stats
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{stats: make(map[string]Stats)}
}

func (r *MemoryRepository) Get(ctx context.Context, userID string) (Stats, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stats[userID]
	return st, ok, nil
}

func (r *MemoryRepository) Increment(ctx context.Context, userID string, now time.Time) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stats[userID]
	st.UserID = userID
	st.TotalCalls++
	st.LastCallAt = now
	r.stats[userID] = st
	return st, nil
}
