package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/promoengine/pkg/db/models"
	pkgredis "github.com/angelmondragon/promoengine/pkg/redis"
)

// Cache keeps a snapshot of the enabled promotions. Snapshots are tied to a
// generation; Invalidate moves to a new generation so older snapshots are
// never read again and expire on their own.
type Cache interface {
	Generation(ctx context.Context) (int64, error)
	Load(ctx context.Context, generation int64) (rows []models.Promotion, hit bool, err error)
	Store(ctx context.Context, generation int64, rows []models.Promotion) error
	Invalidate(ctx context.Context) error
}

type keyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Counter(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error
	PromotionsGenerationKey() string
	PromotionsSnapshotKey(generation int64) string
}

// RedisCache stores the snapshot as JSON in Redis.
type RedisCache struct {
	store keyValueStore
	ttl   time.Duration
}

// NewRedisCache builds a cache over the shared redis client. A non-positive
// ttl keeps snapshots until the next invalidation.
func NewRedisCache(store keyValueStore, ttl time.Duration) (*RedisCache, error) {
	if store == nil {
		return nil, errors.New("redis store required")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisCache{store: store, ttl: ttl}, nil
}

func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	generation, err := c.store.Counter(ctx, c.store.PromotionsGenerationKey())
	if err != nil {
		return 0, fmt.Errorf("read promotions generation: %w", err)
	}
	return generation, nil
}

func (c *RedisCache) Load(ctx context.Context, generation int64) ([]models.Promotion, bool, error) {
	raw, err := c.store.Get(ctx, c.store.PromotionsSnapshotKey(generation))
	if err != nil {
		if pkgredis.IsNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read promotions snapshot: %w", err)
	}
	var rows []models.Promotion
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, false, fmt.Errorf("decode promotions snapshot: %w", err)
	}
	return rows, true, nil
}

func (c *RedisCache) Store(ctx context.Context, generation int64, rows []models.Promotion) error {
	if rows == nil {
		rows = []models.Promotion{}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode promotions snapshot: %w", err)
	}
	if err := c.store.Set(ctx, c.store.PromotionsSnapshotKey(generation), string(payload), c.ttl); err != nil {
		return fmt.Errorf("write promotions snapshot: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	generation, err := c.store.Incr(ctx, c.store.PromotionsGenerationKey())
	if err != nil {
		return fmt.Errorf("bump promotions generation: %w", err)
	}
	// the previous snapshot is unreachable now; a failed delete leaves it to the ttl
	_ = c.store.Del(ctx, c.store.PromotionsSnapshotKey(generation-1))
	return nil
}
