package transcripts

import (
	"context"
	"sync"
)

// MemoryRepository is an in-memory Repository for tests and local development.
type MemoryRepository struct {
	mu    sync.Mutex
	snaps map[string]Snapshot
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{snaps: make(map[string]Snapshot)}
}

func (r *MemoryRepository) Upsert(ctx context.Context, snap Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.snaps[snap.CallID]; ok {
		snap.CreatedAt = prev.CreatedAt
	}
	r.snaps[snap.CallID] = snap
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, callID string) (Snapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.snaps[callID]
	return s, ok, nil
}

func (r *MemoryRepository) LatestByUser(ctx context.Context, userID string) (Snapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest Snapshot
	found := false
	for _, s := range r.snaps {
		if s.UserID != userID {
			continue
		}
		if !found || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
			found = true
		}
	}
	return latest, found, nil
}
