package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"food-order-service/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedCatalog serves product snapshots from redis and falls through to the
// upstream catalog on a miss. Concurrent misses for one product share a
// single upstream call. A nil or failing redis only costs latency.
type CachedCatalog struct {
	upstream Catalog
	redis    *redis.Client
	ttl      time.Duration
	logger   *zap.Logger
	group    singleflight.Group
}

func NewCachedCatalog(upstream Catalog, rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCatalog{upstream: upstream, redis: rdb, ttl: ttl, logger: logger}
}

func cacheKey(id uint64) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *CachedCatalog) GetProduct(ctx context.Context, id uint64) (*domain.ProductSnapshot, error) {
	if p, ok := c.fromCache(ctx, id); ok {
		return p, nil
	}

	// The shared call outlives any single caller; the upstream client's own
	// timeout bounds it.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(strconv.FormatUint(id, 10), func() (interface{}, error) {
		p, err := c.upstream.GetProduct(shared, id)
		if err != nil {
			return nil, err
		}
		c.store(shared, p, c.ttl)
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// callers may mutate what they get back
		cp := *res.Val.(*domain.ProductSnapshot)
		return &cp, nil
	}
}

// Warmup loads the given products into the cache. Failures are logged and
// skipped.
func (c *CachedCatalog) Warmup(ctx context.Context, ids []uint64) error {
	if c.redis == nil {
		return nil
	}

	var warmed int
	for _, id := range ids {
		p, err := c.upstream.GetProduct(ctx, id)
		if err != nil {
			c.logger.Warn("cache warmup failed", zap.Uint64("product_id", id), zap.Error(err))
			continue
		}
		c.store(ctx, p, 5*c.ttl)
		warmed++
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.logger.Info("product cache warmed", zap.Int("requested", len(ids)), zap.Int("warmed", warmed))
	return nil
}

func (c *CachedCatalog) fromCache(ctx context.Context, id uint64) (*domain.ProductSnapshot, bool) {
	if c.redis == nil {
		return nil, false
	}

	raw, err := c.redis.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("product cache read failed", zap.Uint64("product_id", id), zap.Error(err))
		}
		return nil, false
	}

	var p domain.ProductSnapshot
	if err := json.Unmarshal(raw, &p); err != nil {
		c.logger.Warn("dropping corrupt cache entry", zap.Uint64("product_id", id), zap.Error(err))
		c.redis.Del(ctx, cacheKey(id))
		return nil, false
	}
	return &p, true
}

func (c *CachedCatalog) store(ctx context.Context, p *domain.ProductSnapshot, ttl time.Duration) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(p.ID), data, ttl).Err(); err != nil {
		c.logger.Debug("product cache write failed", zap.Uint64("product_id", p.ID), zap.Error(err))
	}
}
