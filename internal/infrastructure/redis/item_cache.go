package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"itemservice/internal/domain/item"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by ItemCache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// ItemCache stores JSON encoded items under item:<id>.
type ItemCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewItemCache(client *redis.Client, ttl time.Duration) *ItemCache {
	return &ItemCache{client: client, ttl: ttl}
}

func Key(id string) string {
	return fmt.Sprintf("item:%s", id)
}

func (c *ItemCache) Get(ctx context.Context, id string) (*item.Item, error) {
	val, err := c.client.Get(ctx, Key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get cached item: %w", err)
	}

	var it item.Item
	if err := json.Unmarshal(val, &it); err != nil {
		return nil, fmt.Errorf("decode cached item: %w", err)
	}

	return &it, nil
}

func (c *ItemCache) Set(ctx context.Context, it *item.Item) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	if err := c.client.Set(ctx, Key(it.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached item: %w", err)
	}
	return nil
}

func (c *ItemCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, Key(id)).Err(); err != nil {
		return fmt.Errorf("delete cached item: %w", err)
	}
	return nil
}
