package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionSnapshotTTL = 24 * time.Hour

// RedisCache keeps session snapshots in Redis with a TTL, so abandoned
// sessions age out on their own.
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

func NewRedisCache(addr string) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &RedisCache{
		client: rdb,
		ctx:    context.Background(),
	}
}

func (r *RedisCache) Get(key string) (string, bool) {
	val, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (r *RedisCache) Set(key string, value string) error {
	return r.client.Set(r.ctx, key, value, sessionSnapshotTTL).Err()
}
