package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/permit"
)

// RedisCache is a CacheBackend shared by every resolver instance that talks
// to the same Redis. Versions are INCR counters, entries are JSON with EX.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisCache(client redis.UniversalClient, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "permit"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) entryKey(key string) string     { return c.prefix + ":decision:" + key }
func (c *RedisCache) versionKey(scope string) string { return c.prefix + ":version:" + scope }

func (c *RedisCache) Get(ctx context.Context, key string) (permit.CacheEntry, bool, error) {
	var e permit.CacheEntry
	payload, err := c.client.Get(ctx, c.entryKey(key)).Bytes()
	if err == redis.Nil {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	if err := json.Unmarshal(payload, &e); err != nil {
		return e, false, fmt.Errorf("decode cached decision: %w", err)
	}
	return e, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, entry permit.CacheEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.entryKey(key), raw, ttl).Err()
}

func (c *RedisCache) IncrVersion(ctx context.Context, scope string) (int64, error) {
	return c.client.Incr(ctx, c.versionKey(scope)).Result()
}

func (c *RedisCache) Versions(ctx context.Context, scopes ...string) ([]int64, error) {
	if len(scopes) == 0 {
		return nil, nil
	}
	keys := make([]string, len(scopes))
	for i, s := range scopes {
		keys[i] = c.versionKey(s)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(scopes))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("version %s: %w", scopes[i], err)
		}
		out[i] = n
	}
	return out, nil
}
