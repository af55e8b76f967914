package transcripts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PostgresRepository persists transcript snapshots in the call_transcripts table:
//
//	CREATE TABLE call_transcripts (
//	  call_id      TEXT PRIMARY KEY,
//	  user_id      TEXT NOT NULL,
//	  transcripts  JSONB NOT NULL,
//	  last_updated TIMESTAMPTZ NOT NULL,
//	  created_at   TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX call_transcripts_user_created ON call_transcripts (user_id, created_at DESC);
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap.Transcripts)
	if err != nil {
		return err
	}
	// created_at survives from the first write; the list and last_updated are
	// replaced wholesale (superset merge: the session redelivers the full list).
	const q = `
INSERT INTO call_transcripts (call_id, user_id, transcripts, last_updated, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (call_id)
DO UPDATE SET transcripts = EXCLUDED.transcripts,
              last_updated = EXCLUDED.last_updated
`
	_, err = r.db.ExecContext(ctx, q, snap.CallID, snap.UserID, payload, snap.LastUpdated, snap.CreatedAt)
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, callID string) (Snapshot, bool, error) {
	const q = `
SELECT call_id, user_id, transcripts, last_updated, created_at
FROM call_transcripts
WHERE call_id = $1
`
	return r.scanOne(r.db.QueryRowContext(ctx, q, callID))
}

func (r *PostgresRepository) LatestByUser(ctx context.Context, userID string) (Snapshot, bool, error) {
	const q = `
SELECT call_id, user_id, transcripts, last_updated, created_at
FROM call_transcripts
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT 1
`
	return r.scanOne(r.db.QueryRowContext(ctx, q, userID))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (Snapshot, bool, error) {
	var s Snapshot
	var payload []byte
	err := row.Scan(&s.CallID, &s.UserID, &payload, &s.LastUpdated, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	if err := json.Unmarshal(payload, &s.Transcripts); err != nil {
		return Snapshot{}, false, err
	}
	return s, true, nil
}
