package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"storegate/internal/constraint/models"
	"storegate/pkg/domain"
)

const defaultCacheTTL = 30 * time.Second

// Cached wraps a Store with a redis read-through cache on ListActive, the
// hot path hit on every checkout evaluation. Mutations invalidate the cached
// listing for the affected target type.
type Cached struct {
	Store
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

func NewCached(inner Store, client *redis.Client, logger *slog.Logger) *Cached {
	return &Cached{Store: inner, client: client, logger: logger, ttl: defaultCacheTTL}
}

func cacheKey(tt models.TargetType) string {
	return "constraints:active:" + string(tt)
}

func (c *Cached) ListActive(ctx context.Context, tt models.TargetType) ([]*models.Constraint, error) {
	key := cacheKey(tt)
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached []*models.Constraint
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		// A corrupt entry is dropped and refilled from the store.
		c.client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "constraint cache read failed", "key", key, "error", err)
	}

	listed, err := c.Store.ListActive(ctx, tt)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(listed); err == nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "constraint cache write failed", "key", key, "error", err)
		}
	}
	return listed, nil
}

func (c *Cached) Create(ctx context.Context, constraint *models.Constraint) error {
	if err := c.Store.Create(ctx, constraint); err != nil {
		return err
	}
	c.invalidate(ctx, constraint.TargetType)
	return nil
}

func (c *Cached) Update(ctx context.Context, constraint *models.Constraint, expectedVersion int64) error {
	if err := c.Store.Update(ctx, constraint, expectedVersion); err != nil {
		return err
	}
	c.invalidate(ctx, constraint.TargetType)
	return nil
}

func (c *Cached) Delete(ctx context.Context, id domain.ConstraintID) error {
	// The target type is unknown from the id alone, so both listings go.
	if err := c.Store.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, models.TargetShipping)
	c.invalidate(ctx, models.TargetPayment)
	return nil
}

func (c *Cached) invalidate(ctx context.Context, tt models.TargetType) {
	if err := c.client.Del(ctx, cacheKey(tt)).Err(); err != nil {
		c.logger.WarnContext(ctx, "constraint cache invalidation failed",
			"target_type", string(tt), "error", err)
	}
}

var _ Store = (*Cached)(nil)
