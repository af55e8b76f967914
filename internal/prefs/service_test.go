package prefs

import (
	"context"
	"testing"
	"time"
)

func TestGet_DefaultsForMissingProfile(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	p, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.UserID != "u1" || p.Persona != DefaultPersona {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestGet_DefaultsEmptyPersona(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.Save(ctx, Profile{UserID: "u1", FirstName: "Ana"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	p, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.FirstName != "Ana" || p.Persona != DefaultPersona {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestEnsurePersona(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	svc.clock = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	// Missing profile: no-op, nothing created.
	if err := svc.EnsurePersona(ctx, "ghost"); err != nil {
		t.Fatalf("EnsurePersona: %v", err)
	}
	if _, ok, _ := repo.Get(ctx, "ghost"); ok {
		t.Fatal("EnsurePersona must not create profiles")
	}

	// Existing profile without persona: backfilled.
	repo.Upsert(ctx, Profile{UserID: "u1", FirstName: "Ana"})
	if err := svc.EnsurePersona(ctx, "u1"); err != nil {
		t.Fatalf("EnsurePersona: %v", err)
	}
	p, _, _ := repo.Get(ctx, "u1")
	if p.Persona != DefaultPersona {
		t.Fatalf("persona not backfilled: %+v", p)
	}

	// Custom persona: untouched.
	repo.Upsert(ctx, Profile{UserID: "u2", Persona: "stoic mentor"})
	svc.EnsurePersona(ctx, "u2")
	p2, _, _ := repo.Get(ctx, "u2")
	if p2.Persona != "stoic mentor" {
		t.Fatalf("persona overwritten: %+v", p2)
	}
}
