package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

const shopKeyPrefix = "catalog:shop:"

var cacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalog_cache_lookups_total",
		Help: "Catalog cache lookups by record kind and result (hit, miss, error)",
	},
	[]string{"kind", "result"},
)

// CachedReader serves shop records from Redis, falling back to next on a miss.
// Redis failures are logged and never fail a lookup. Products are always read
// from next so checkout prices are current, and owner shop lists are not cached
// so newly approved shops show up immediately.
type CachedReader struct {
	next   Reader
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedReader wraps next with a Redis cache holding entries for ttl.
func NewCachedReader(next Reader, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedReader {
	return &CachedReader{next: next, client: client, ttl: ttl, logger: logger}
}

// GetProduct implements Reader. It never consults the cache.
func (c *CachedReader) GetProduct(ctx context.Context, id string) (*Product, error) {
	return c.next.GetProduct(ctx, id)
}

// GetShop implements Reader.
func (c *CachedReader) GetShop(ctx context.Context, id string) (*Shop, error) {
	return cached(ctx, c, "shop", shopKeyPrefix+id, func() (*Shop, error) {
		return c.next.GetShop(ctx, id)
	})
}

// ListShopIDsByOwner implements Reader.
func (c *CachedReader) ListShopIDsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	return c.next.ListShopIDsByOwner(ctx, ownerID)
}

// InvalidateShop drops the cached shop so the next read refetches it.
func (c *CachedReader) InvalidateShop(ctx context.Context, id string) error {
	return c.client.Del(ctx, shopKeyPrefix+id).Err()
}

func cached[T any](ctx context.Context, c *CachedReader, kind, key string, load func() (*T, error)) (*T, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var v T
		if jsonErr := json.Unmarshal(raw, &v); jsonErr == nil {
			cacheLookups.WithLabelValues(kind, "hit").Inc()
			return &v, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt cache entry", slog.String("key", key))
		cacheLookups.WithLabelValues(kind, "error").Inc()
	case errors.Is(err, redis.Nil):
		cacheLookups.WithLabelValues(kind, "miss").Inc()
	default:
		c.logger.WarnContext(ctx, "catalog cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		cacheLookups.WithLabelValues(kind, "error").Inc()
	}

	v, err := load()
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(v); err == nil {
		if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "catalog cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	return v, nil
}
