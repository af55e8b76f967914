package wallet

import (
	"context"
	"database/sql"
	"errors"

	"voicechat-platform/pkg/utils"
)

// PostgresRepository persists wallets in the wallets table:
//
//	CREATE TABLE wallets (
//	  user_id         TEXT PRIMARY KEY,
//	  balance_seconds BIGINT NOT NULL CHECK (balance_seconds >= 0),
//	  last_loaded     TIMESTAMPTZ NOT NULL,
//	  created_at      TIMESTAMPTZ NOT NULL,
//	  updated_at      TIMESTAMPTZ NOT NULL
//	);
//
// Update serializes per-user money operations with SELECT ... FOR UPDATE.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (Wallet, bool, error) {
	const q = `
SELECT user_id, balance_seconds, last_loaded, created_at, updated_at
FROM wallets
WHERE user_id = $1
`
	var w Wallet
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&w.UserID,
		&w.BalanceSeconds,
		&w.LastLoaded,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Wallet{}, false, nil
		}
		return Wallet{}, false, err
	}
	return w, true, nil
}

func (r *PostgresRepository) Create(ctx context.Context, w Wallet) error {
	// DO NOTHING keeps racing initializers idempotent; both write the same default.
	const q = `
INSERT INTO wallets (user_id, balance_seconds, last_loaded, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id) DO NOTHING
`
	_, err := r.db.ExecContext(ctx, q, w.UserID, w.BalanceSeconds, w.LastLoaded, w.CreatedAt, w.UpdatedAt)
	return err
}

func (r *PostgresRepository) Update(ctx context.Context, userID string, fn UpdateFunc) (Wallet, error) {
	var out Wallet
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const sel = `
SELECT user_id, balance_seconds, last_loaded, created_at, updated_at
FROM wallets
WHERE user_id = $1
FOR UPDATE
`
		var w Wallet
		exists := true
		err := tx.QueryRowContext(ctx, sel, userID).Scan(
			&w.UserID,
			&w.BalanceSeconds,
			&w.LastLoaded,
			&w.CreatedAt,
			&w.UpdatedAt,
		)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			exists = false
			w = Wallet{UserID: userID}
		}

		if err := fn(&w, exists); err != nil {
			return err
		}

		if exists {
			const upd = `
UPDATE wallets
SET balance_seconds = $2, last_loaded = $3, updated_at = $4
WHERE user_id = $1
`
			if _, err := tx.ExecContext(ctx, upd, w.UserID, w.BalanceSeconds, w.LastLoaded, w.UpdatedAt); err != nil {
				return err
			}
		} else {
			const ins = `
INSERT INTO wallets (user_id, balance_seconds, last_loaded, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5)
`
			if _, err := tx.ExecContext(ctx, ins, w.UserID, w.BalanceSeconds, w.LastLoaded, w.CreatedAt, w.UpdatedAt); err != nil {
				return err
			}
		}
		out = w
		return nil
	})
	if err != nil {
		return Wallet{}, err
	}
	return out, nil
}
