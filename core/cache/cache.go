package cache

import (
	"context"
	"time"

	"clinic-sync/core/config"
	"clinic-sync/core/constants"
	"clinic-sync/core/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cache holds the ephemeral sync state: loop-guard flags and one-time OAuth
// CSRF states. Both are short-lived by construction, so Redis TTLs back them.
type Cache interface {
	SetLoopGuard(ctx context.Context, appointmentID uuid.UUID) error
	// ConsumeLoopGuard reports whether the flag was set and clears it in the
	// same operation.
	ConsumeLoopGuard(ctx context.Context, appointmentID uuid.UUID) (bool, error)

	// SaveOAuthState stores a one-time CSRF state token alongside the staff
	// member who initiated the consent flow. The callback route is public, so
	// the state is the only link back to the actor.
	SaveOAuthState(ctx context.Context, state string, actorID uuid.UUID) error
	// ConsumeOAuthState validates a state token and invalidates it (one-time
	// use), returning the actor who initiated the flow.
	ConsumeOAuthState(ctx context.Context, state string) (uuid.UUID, bool, error)

	Ping(ctx context.Context) error
}

type redisCache struct {
	client *redis.Client
}

func NewCache(cfg config.RedisConfig) Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &redisCache{client: client}
}

// NewCacheWithClient wraps an existing client. Test helper.
func NewCacheWithClient(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) SetLoopGuard(ctx context.Context, appointmentID uuid.UUID) error {
	key := constants.RedisKeyLoopGuard + appointmentID.String()
	err := c.client.Set(ctx, key, "1", constants.LoopGuardTTL).Err()
	if err != nil {
		logger.Error("Cache:SetLoopGuard:Error", "error", err, "appointment_id", appointmentID)
	}
	return err
}

func (c *redisCache) ConsumeLoopGuard(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	key := constants.RedisKeyLoopGuard + appointmentID.String()
	_, err := c.client.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		logger.Error("Cache:ConsumeLoopGuard:Error", "error", err, "appointment_id", appointmentID)
		return false, err
	}
	return true, nil
}

func (c *redisCache) SaveOAuthState(ctx context.Context, state string, actorID uuid.UUID) error {
	key := constants.RedisKeyOAuthState + state
	err := c.client.Set(ctx, key, actorID.String(), constants.OAuthStateTTL).Err()
	if err != nil {
		logger.Error("Cache:SaveOAuthState:Error", "error", err)
	}
	return err
}

func (c *redisCache) ConsumeOAuthState(ctx context.Context, state string) (uuid.UUID, bool, error) {
	key := constants.RedisKeyOAuthState + state
	val, err := c.client.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		logger.Error("Cache:ConsumeOAuthState:Error", "error", err)
		return uuid.Nil, false, err
	}
	actorID, perr := uuid.Parse(val)
	if perr != nil {
		return uuid.Nil, false, nil
	}
	return actorID, true, nil
}

func (c *redisCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}
