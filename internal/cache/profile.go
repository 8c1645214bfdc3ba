package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aditya/rideshare/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	userProfileKeyPrefix = "user:profile:"
	defaultProfileTTL    = 5 * time.Minute
)

// ProfileCache holds user display profiles. Entries expire on their own;
// users are never written by this service.
type ProfileCache interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	SetUser(ctx context.Context, user *models.User) error
	Invalidate(ctx context.Context, userID string) error
}

type profileCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewProfileCache(redisClient *redis.Client, ttl time.Duration) ProfileCache {
	if ttl <= 0 {
		ttl = defaultProfileTTL
	}
	return &profileCache{redis: redisClient, ttl: ttl}
}

// GetUser returns nil, nil on a miss.
func (c *profileCache) GetUser(ctx context.Context, userID string) (*models.User, error) {
	data, err := c.redis.Get(ctx, userProfileKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *profileCache) SetUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, userProfileKeyPrefix+user.ID, data, c.ttl).Err()
}

func (c *profileCache) Invalidate(ctx context.Context, userID string) error {
	return c.redis.Del(ctx, userProfileKeyPrefix+userID).Err()
}
