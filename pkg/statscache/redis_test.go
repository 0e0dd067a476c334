package statscache

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestNewRedisCacheKeys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	def := NewRedisCache(client, "", time.Minute)
	assert.Equal(t, "collections:statistics", def.key)
	assert.Equal(t, "collections:statistics:generation", def.genKey)

	custom := NewRedisCache(client, " billing: ", time.Minute)
	assert.Equal(t, "billing:statistics", custom.key)
	assert.Equal(t, "billing:statistics:generation", custom.genKey)
}
