package callstats

import (
	"context"
	"errors"
	"time"

	"voicechat-platform/pkg/logger"
)

// Stats is the per-user lifetime call counter.
// TotalCalls only ever increases; it parametrizes the agent's conversation context.
type Stats struct {
	UserID     string    `json:"user_id" db:"user_id"`
	TotalCalls int64     `json:"total_calls" db:"total_calls"`
	LastCallAt time.Time `json:"last_call_at" db:"last_call_at"`
}

var ErrInvalidArgument = errors.New("callstats: invalid argument")

// Repository is the persistence contract for call stats.
// Increment must be atomic per user.
type Repository interface {
	Get(ctx context.Context, userID string) (Stats, bool, error)
	Increment(ctx context.Context, userID string, now time.Time) (Stats, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Increment bumps the lifetime counter at call start and returns the new total.
// Best-effort: callers should not fail call setup on a stats error.
func (s *Service) Increment(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrInvalidArgument
	}
	st, err := s.repo.Increment(ctx, userID, s.clock().UTC())
	if err != nil {
		return 0, err
	}
	return st.TotalCalls, nil
}

// Total returns the stored lifetime call count, 0 on miss or failure.
func (s *Service) Total(ctx context.Context, userID string) int64 {
	if userID == "" {
		return 0
	}
	st, ok, err := s.repo.Get(ctx, userID)
	if err != nil {
		logger.From(ctx).Error("call stats read failed", "user_id", userID, "err", err)
		return 0
	}
	if !ok {
		return 0
	}
	return st.TotalCalls
}
