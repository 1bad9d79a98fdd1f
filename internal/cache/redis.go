package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront-be/internal/logger"
	"storefront-be/internal/product"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const productKeyPrefix = "product:"

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// ProductCache stores serialized products under product:<id>. Redis failures
// degrade to cache misses; the database stays the source of truth.
type ProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProductCache(client *redis.Client, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

func productKey(id uuid.UUID) string {
	return productKeyPrefix + id.String()
}

func (c *ProductCache) Get(ctx context.Context, id uuid.UUID) (*product.Product, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.FromCtx(ctx).Warn("product cache get failed", zap.String("product_id", id.String()), zap.Error(err))
		}
		return nil, false
	}

	var p product.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		logger.FromCtx(ctx).Warn("product cache entry corrupt", zap.String("product_id", id.String()), zap.Error(err))
		return nil, false
	}
	return &p, true
}

func (c *ProductCache) Set(ctx context.Context, p *product.Product) {
	if c == nil || c.client == nil || p == nil {
		return
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, productKey(p.ID), raw, c.ttl).Err(); err != nil {
		logger.FromCtx(ctx).Warn("product cache set failed", zap.String("product_id", p.ID.String()), zap.Error(err))
	}
}

func (c *ProductCache) Invalidate(ctx context.Context, ids ...uuid.UUID) {
	if c == nil || c.client == nil || len(ids) == 0 {
		return
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.FromCtx(ctx).Warn("product cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
