package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seawatch-io/seawatch/internal/relay/core"
	"github.com/seawatch-io/seawatch/internal/relay/core/model"
	"github.com/seawatch-io/seawatch/pkg/log"
)

const cacheKeyPrefix = "seawatch:vehicle:"

// Cached is a read-through Redis cache in front of another inventory.
// Only found vehicles are cached; an unknown vehicle always reaches the
// backing inventory so newly registered vehicles are seen immediately.
// Redis failures fall through to the backing inventory.
type Cached struct {
	next   core.Inventory
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger log.Logger
}

var _ Inventory = (*Cached)(nil)

// NewCached wraps next with a cache of the given TTL.
func NewCached(next core.Inventory, rdb redis.UniversalClient, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cached{next: next, rdb: rdb, ttl: ttl, logger: log.WithName("inventory-cache")}
}

func (c *Cached) LookupVehicle(ctx context.Context, id string) (*model.Vehicle, error) {
	key := cacheKeyPrefix + id

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		v := &model.Vehicle{}
		if jerr := json.Unmarshal(data, v); jerr == nil {
			return v, nil
		}
		c.logger.Warn("Discarding undecodable cache entry", "vehicle", id)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Cache read failed", "vehicle", id, "error", err.Error())
	}

	v, err := c.next.LookupVehicle(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(v); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Cache write failed", "vehicle", id, "error", err.Error())
		}
	}
	return v, nil
}

func (c *Cached) LookupGatewayAddress(ctx context.Context, id string) (string, error) {
	return gatewayOf(ctx, c, id)
}

// ListVehicles always reads the backing inventory.
func (c *Cached) ListVehicles(ctx context.Context) ([]*model.Vehicle, error) {
	l, ok := c.next.(Lister)
	if !ok {
		return nil, errors.New("backing inventory cannot list vehicles")
	}
	return l.ListVehicles(ctx)
}

// Invalidate drops the cached entry of id.
func (c *Cached) Invalidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, cacheKeyPrefix+id).Err()
}
