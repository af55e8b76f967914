package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"voicechat-platform/internal/transcripts"
	"voicechat-platform/pkg/logger"
	"voicechat-platform/pkg/utils"
)

// ErrSessionActive rejects a second concurrent call for the same user.
var ErrSessionActive = errors.New("session: session already active")

// Guard is the cross-instance single-session-per-user admission check.
type Guard interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// RedisGuard enforces the cap with the atomic Lua counter so two API
// instances cannot admit the same user simultaneously. The TTL reclaims
// slots leaked by a crash mid-call.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client) *RedisGuard {
	return &RedisGuard{rdb: rdb, ttl: 2 * time.Hour}
}

func sessionCapKey(userID string) string {
	return "call_session:" + userID
}

func (g *RedisGuard) Acquire(ctx context.Context, userID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, g.rdb, sessionCapKey(userID), 1, g.ttl)
}

func (g *RedisGuard) Release(ctx context.Context, userID string) error {
	return utils.ReleaseConcurrencyCap(ctx, g.rdb, sessionCapKey(userID))
}

// Registry tracks the active controller per user on this instance and holds
// the cross-instance guard slot for the controller's lifetime.
type Registry struct {
	deps  Deps
	guard Guard

	mu     sync.Mutex
	active map[string]*Controller
}

func NewRegistry(deps Deps, guard Guard) *Registry {
	return &Registry{
		deps:   deps.withDefaults(),
		guard:  guard,
		active: make(map[string]*Controller),
	}
}

// Start admits and starts a new session for the user.
// Returns ErrSessionActive when one is already running here or elsewhere.
func (r *Registry) Start(ctx context.Context, userID string, p StartParams) (Snapshot, error) {
	if userID == "" {
		return Snapshot{}, ErrNoActiveSession
	}

	r.mu.Lock()
	if _, ok := r.active[userID]; ok {
		r.mu.Unlock()
		return Snapshot{}, ErrSessionActive
	}
	r.mu.Unlock()

	ok, err := r.guard.Acquire(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("session: acquire slot: %w", err)
	}
	if !ok {
		return Snapshot{}, ErrSessionActive
	}

	c := newController(r.deps, userID)
	c.onTerminated = func() {
		r.mu.Lock()
		delete(r.active, userID)
		r.mu.Unlock()
		r.releaseSlot(userID)
	}

	// Registered before Start so an instantly-terminating session cannot
	// leave a stale entry behind.
	r.mu.Lock()
	r.active[userID] = c
	r.mu.Unlock()

	if _, err := c.Start(ctx, p); err != nil {
		r.mu.Lock()
		delete(r.active, userID)
		r.mu.Unlock()
		r.releaseSlot(userID)
		return Snapshot{}, err
	}
	return c.Snapshot(), nil
}

// HangUp terminates the user's active session, settling first.
func (r *Registry) HangUp(ctx context.Context, userID string) error {
	r.mu.Lock()
	c, ok := r.active[userID]
	r.mu.Unlock()
	if !ok {
		return ErrNoActiveSession
	}
	return c.HangUp(ctx)
}

// Snapshot returns the user's current session state; a user without an
// active session is simply disconnected.
func (r *Registry) Snapshot(userID string) Snapshot {
	r.mu.Lock()
	c, ok := r.active[userID]
	r.mu.Unlock()
	if !ok {
		return Snapshot{Status: StatusDisconnected, Transcripts: []transcripts.Entry{}}
	}
	return c.Snapshot()
}

func (r *Registry) releaseSlot(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.guard.Release(ctx, userID); err != nil {
		logger.From(ctx).Error("session slot release failed", "user_id", userID, "err", err)
	}
}
