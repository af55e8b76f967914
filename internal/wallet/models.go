package wallet

import (
	"fmt"
	"time"
)

// DefaultBalanceSeconds is the starting entitlement granted on first touch
// (7 minutes of talk time).
const DefaultBalanceSeconds int64 = 420

// Wallet is the per-user prepaid talk-time counter.
//
// Invariant: BalanceSeconds >= 0 always. Debits clamp at zero inside the
// store transaction; no caller may write a balance directly.
type Wallet struct {
	UserID string `json:"user_id" db:"user_id"`

	// BalanceSeconds is the remaining entitlement in whole seconds.
	BalanceSeconds int64 `json:"balance_seconds" db:"balance_seconds"`

	// LastLoaded is the time of the most recent top-up.
	LastLoaded time.Time `json:"last_loaded" db:"last_loaded"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FormatSeconds renders a balance as M:SS for display.
func FormatSeconds(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
