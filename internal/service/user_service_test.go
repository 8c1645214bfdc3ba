package service

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/aditya/rideshare/internal/errors"
	"github.com/aditya/rideshare/internal/models"
)

type memProfiles struct {
	users map[string]*models.User
	gets  int
}

func (m *memProfiles) GetUser(_ context.Context, id string) (*models.User, error) {
	m.gets++
	return m.users[id], nil
}

func (m *memProfiles) SetUser(_ context.Context, u *models.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *memProfiles) Invalidate(_ context.Context, id string) error {
	delete(m.users, id)
	return nil
}

func TestUserServiceReadsThroughCache(t *testing.T) {
	store := newMemStore()
	store.addUser("u1", "Ana", "Rao", models.GenderFemale)
	store.addUser("u2", "Ben", "Ito", models.GenderMale)
	profiles := &memProfiles{users: make(map[string]*models.User)}
	svc := NewUserService(fakeUserRepo{store}, profiles)
	ctx := context.Background()

	u, err := svc.GetUser(ctx, "u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.FirstName != "Ana" {
		t.Errorf("FirstName = %q, want Ana", u.FirstName)
	}
	if _, ok := profiles.users["u1"]; !ok {
		t.Error("profile not cached after a miss")
	}

	// Served from cache even once the row changes.
	store.mu.Lock()
	store.users["u1"].FirstName = "Changed"
	store.mu.Unlock()
	u, _ = svc.GetUser(ctx, "u1")
	if u.FirstName != "Ana" {
		t.Errorf("FirstName = %q, want cached Ana", u.FirstName)
	}

	if _, err := svc.GetUser(ctx, "nobody"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("GetUser(nobody) error = %v, want not found", err)
	}

	found, err := svc.GetUsers(ctx, []string{"u1", "u2", "u1", "nobody"})
	if err != nil {
		t.Fatalf("GetUsers() error = %v", err)
	}
	if len(found) != 2 || found["u2"].FirstName != "Ben" {
		t.Errorf("GetUsers() = %v", found)
	}
	if _, ok := profiles.users["u2"]; !ok {
		t.Error("batch lookup did not populate cache")
	}
}
