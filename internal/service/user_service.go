package service

import (
	"context"
	"log"

	"github.com/aditya/rideshare/internal/cache"
	apperrors "github.com/aditya/rideshare/internal/errors"
	"github.com/aditya/rideshare/internal/models"
	"github.com/aditya/rideshare/internal/repository"
)

// UserService reads user profiles. Users are owned by the registration
// service; nothing here writes them.
type UserService interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]*models.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	profiles cache.ProfileCache
}

// NewUserService reads through profiles when it is non-nil.
func NewUserService(userRepo repository.UserRepository, profiles cache.ProfileCache) UserService {
	return &userService{
		userRepo: userRepo,
		profiles: profiles,
	}
}

func (s *userService) GetUser(ctx context.Context, id string) (*models.User, error) {
	if s.profiles != nil {
		user, err := s.profiles.GetUser(ctx, id)
		if err != nil {
			log.Printf("Failed to read profile cache for user %s: %v", id, err)
		} else if user != nil {
			return user, nil
		}
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NotFound("user")
	}

	s.remember(ctx, user)
	return user, nil
}

// GetUsers returns the users it can find keyed by id. Missing ids are left
// out rather than reported.
func (s *userService) GetUsers(ctx context.Context, ids []string) (map[string]*models.User, error) {
	found := make(map[string]*models.User, len(ids))
	var misses []string

	for _, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}
		if s.profiles != nil {
			user, err := s.profiles.GetUser(ctx, id)
			if err == nil && user != nil {
				found[id] = user
				continue
			}
		}
		misses = append(misses, id)
	}

	if len(misses) == 0 {
		return found, nil
	}

	users, err := s.userRepo.GetByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		found[u.ID] = u
		s.remember(ctx, u)
	}
	return found, nil
}

func (s *userService) remember(ctx context.Context, user *models.User) {
	if s.profiles == nil {
		return
	}
	if err := s.profiles.SetUser(ctx, user); err != nil {
		log.Printf("Failed to cache profile for user %s: %v", user.ID, err)
	}
}
