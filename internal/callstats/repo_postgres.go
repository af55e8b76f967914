package callstats

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepository persists call stats in the call_stats table:
//
//	CREATE TABLE call_stats (
//	  user_id      TEXT PRIMARY KEY,
//	  total_calls  BIGINT NOT NULL DEFAULT 0,
//	  last_call_at TIMESTAMPTZ NOT NULL
//	);
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (Stats, bool, error) {
	const q = `
SELECT user_id, total_calls, last_call_at
FROM call_stats
WHERE user_id = $1
`
	var st Stats
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&st.UserID, &st.TotalCalls, &st.LastCallAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Stats{}, false, nil
		}
		return Stats{}, false, err
	}
	return st, true, nil
}

func (r *PostgresRepository) Increment(ctx context.Context, userID string, now time.Time) (Stats, error) {
	const q = `
INSERT INTO call_stats (user_id, total_calls, last_call_at)
VALUES ($1, 1, $2)
ON CONFLICT (user_id)
DO UPDATE SET total_calls = call_stats.total_calls + 1,
              last_call_at = EXCLUDED.last_call_at
RETURNING user_id, total_calls, last_call_at
`
	var st Stats
	if err := r.db.QueryRowContext(ctx, q, userID, now).Scan(&st.UserID, &st.TotalCalls, &st.LastCallAt); err != nil {
		return Stats{}, err
	}
	return st, nil
}
