// Package prefs holds the lightweight user profile feeding call-context
// assembly: the name the agent greets with and the persona it speaks in.
package prefs

import (
	"context"
	"errors"
	"time"
)

// DefaultPersona is applied when a profile has no persona recorded.
const DefaultPersona = "friendly companion"

var ErrInvalidArgument = errors.New("prefs: invalid argument")

type Profile struct {
	UserID    string    `json:"user_id" db:"user_id"`
	FirstName string    `json:"first_name" db:"first_name"`
	Persona   string    `json:"persona" db:"persona"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Repository interface {
	Get(ctx context.Context, userID string) (Profile, bool, error)
	Upsert(ctx context.Context, p Profile) error
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Get returns the user's profile with the persona defaulted, so callers never
// see an unset persona. Missing profiles come back as a bare default.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrInvalidArgument
	}
	p, ok, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{UserID: userID, Persona: DefaultPersona}, nil
	}
	if p.Persona == "" {
		p.Persona = DefaultPersona
	}
	return p, nil
}

// Save upserts the profile, stamping UpdatedAt.
func (s *Service) Save(ctx context.Context, p Profile) error {
	if p.UserID == "" {
		return ErrInvalidArgument
	}
	now := s.clock().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return s.repo.Upsert(ctx, p)
}

// EnsurePersona backfills the persona for an existing profile that predates
// the persona field. A missing profile is left alone.
func (s *Service) EnsurePersona(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	p, ok, err := s.repo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !ok || p.Persona != "" {
		return nil
	}
	p.Persona = DefaultPersona
	p.UpdatedAt = s.clock().UTC()
	return s.repo.Upsert(ctx, p)
}
