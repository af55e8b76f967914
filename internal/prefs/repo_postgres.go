package prefs

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepository persists profiles in the user_profiles table:
//
//	CREATE TABLE user_profiles (
//	  user_id    TEXT PRIMARY KEY,
//	  first_name TEXT NOT NULL DEFAULT '',
//	  persona    TEXT NOT NULL DEFAULT '',
//	  created_at TIMESTAMPTZ NOT NULL,
//	  updated_at TIMESTAMPTZ NOT NULL
//	);
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (Profile, bool, error) {
	const q = `
SELECT user_id, first_name, persona, created_at, updated_at
FROM user_profiles
WHERE user_id = $1
`
	var p Profile
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&p.UserID, &p.FirstName, &p.Persona, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, false, nil
		}
		return Profile{}, false, err
	}
	return p, true, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, p Profile) error {
	const q = `
INSERT INTO user_profiles (user_id, first_name, persona, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (user_id)
DO UPDATE SET first_name = EXCLUDED.first_name,
              persona = EXCLUDED.persona,
              updated_at = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q, p.UserID, p.FirstName, p.Persona, p.CreatedAt, p.UpdatedAt)
	return err
}
