package wallet

import (
	"context"
	"errors"
	"time"

	"voicechat-platform/pkg/logger"
)

var (
	ErrInvalidArgument = errors.New("wallet: invalid argument")
	ErrWalletMissing   = errors.New("wallet: record missing")
)

// UpdateFunc mutates a wallet inside the store's atomic read-modify-write.
// exists reports whether a record was found; when false the zero-value wallet
// (with UserID set) is passed and a returned nil error creates the record.
type UpdateFunc func(w *Wallet, exists bool) error

// Repository is the persistence contract for wallets.
//
// Update MUST execute fn atomically with respect to other Update calls for the
// same user: concurrent debits/top-ups may interleave only at whole-transaction
// granularity. This is the only concurrency control the wallet relies on.
type Repository interface {
	Get(ctx context.Context, userID string) (Wallet, bool, error)
	Create(ctx context.Context, w Wallet) error
	Update(ctx context.Context, userID string, fn UpdateFunc) (Wallet, error)
}

// Service provides wallet operations.
//
// Money invariants:
// - Balance never observed negative; debit clamps at zero inside the transaction.
// - All balance mutations go through Repository.Update (atomic read-modify-write).
// - Read failures degrade to zero balance rather than failing the caller.
type Service struct {
	repo Repository
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// GetBalance returns the user's remaining seconds.
// A missing record is created with the default entitlement (first-touch
// semantics); any store failure is logged and reported as zero balance.
func (s *Service) GetBalance(ctx context.Context, userID string) int64 {
	if userID == "" {
		return 0
	}
	w, ok, err := s.repo.Get(ctx, userID)
	if err != nil {
		logger.From(ctx).Error("wallet balance read failed", "user_id", userID, "err", err)
		return 0
	}
	if !ok {
		if err := s.Initialize(ctx, userID); err != nil {
			logger.From(ctx).Error("wallet lazy init failed", "user_id", userID, "err", err)
			return 0
		}
		return DefaultBalanceSeconds
	}
	return w.BalanceSeconds
}

// Initialize creates a wallet with the default entitlement if none exists.
// The existence check is a plain read, not an atomic upsert: a race between two
// initializers writes the same constant default on both sides, so the outcome
// is idempotent in effect.
func (s *Service) Initialize(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	_, ok, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	now := s.clock().UTC()
	return s.repo.Create(ctx, Wallet{
		UserID:         userID,
		BalanceSeconds: DefaultBalanceSeconds,
		LastLoaded:     now,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
}

// Debit subtracts seconds of call time, clamping the balance at zero.
// The record must already exist; initialization happens upstream at call start.
func (s *Service) Debit(ctx context.Context, userID string, seconds int64) (Wallet, error) {
	if userID == "" || seconds <= 0 {
		return Wallet{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	return s.repo.Update(ctx, userID, func(w *Wallet, exists bool) error {
		if !exists {
			return ErrWalletMissing
		}
		next := w.BalanceSeconds - seconds
		if next < 0 {
			next = 0
		}
		w.BalanceSeconds = next
		w.UpdatedAt = now
		return nil
	})
}

// Credit adds minutes of talk time and refreshes the top-up timestamp.
// Unlike Debit, a missing record is created as part of the transaction.
func (s *Service) Credit(ctx context.Context, userID string, minutes int64) (Wallet, error) {
	if userID == "" || minutes <= 0 {
		return Wallet{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	return s.repo.Update(ctx, userID, func(w *Wallet, exists bool) error {
		if !exists {
			w.CreatedAt = now
		}
		w.BalanceSeconds += minutes * 60
		w.LastLoaded = now
		w.UpdatedAt = now
		return nil
	})
}

// HasInsufficientBalance reports whether the user cannot cover requiredSeconds.
func (s *Service) HasInsufficientBalance(ctx context.Context, userID string, requiredSeconds int64) bool {
	return s.GetBalance(ctx, userID) < requiredSeconds
}
