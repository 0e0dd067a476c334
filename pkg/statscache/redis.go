/**
 * @description
 * Redis-backed cache for the aggregate collections statistics. Every committed
 * mutation bumps a generation counter and drops the entry. A reader stores what
 * it computed only if no mutation landed since it read the generation.
 */
package statscache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/transfa/collections-service/internal/domain"
)

const defaultPrefix = "collections"

var setIfCurrentScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
if current ~= tonumber(ARGV[1]) then
  return 0
end
if tonumber(ARGV[3]) > 0 then
  redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
else
  redis.call("SET", KEYS[2], ARGV[2])
end
return 1
`)

// RedisCache stores one JSON-encoded Statistics value and the generation it
// was computed against.
type RedisCache struct {
	client redis.UniversalClient
	key    string
	genKey string
	ttl    time.Duration
}

// NewRedisCache creates a RedisCache. An empty prefix uses "collections".
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = defaultPrefix
	}
	return &RedisCache{
		client: client,
		key:    p + ":statistics",
		genKey: p + ":statistics:generation",
		ttl:    ttl,
	}
}

// Get returns the cached statistics (nil on a miss) and the current
// generation, which a later Set must present.
func (c *RedisCache) Get(ctx context.Context) (*domain.Statistics, int64, error) {
	values, err := c.client.MGet(ctx, c.genKey, c.key).Result()
	if err != nil {
		return nil, 0, err
	}
	if len(values) != 2 {
		return nil, 0, fmt.Errorf("unexpected statistics cache response length: %d", len(values))
	}

	var generation int64
	if raw, ok := values[0].(string); ok {
		generation, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid statistics cache generation %q: %w", raw, err)
		}
	}

	raw, ok := values[1].(string)
	if !ok {
		return nil, generation, nil
	}
	var stats domain.Statistics
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil, generation, err
	}
	return &stats, generation, nil
}

// Set stores stats for the configured TTL unless the generation moved past
// generation. It reports whether the value was stored.
func (c *RedisCache) Set(ctx context.Context, generation int64, stats domain.Statistics) (bool, error) {
	raw, err := json.Marshal(stats)
	if err != nil {
		return false, err
	}
	stored, err := setIfCurrentScript.Run(ctx, c.client, []string{c.genKey, c.key}, generation, raw, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate bumps the generation and drops the cached statistics.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey)
		pipe.Del(ctx, c.key)
		return nil
	})
	return err
}
