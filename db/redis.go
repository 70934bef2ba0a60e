package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adamspd/crispies/utils"
)

const redisTimeout = 2 * time.Second

// RedisStore keeps items as plain redis strings
type RedisStore struct {
	client *redis.Client
}

var _ Store = &RedisStore{}

// NewRedisStore connects to redisURL and checks the connection
func NewRedisStore(redisURL string) (*RedisStore, error) {
	utils.LogStartup("Connecting to redis at: %s", redisURL)

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		utils.LogError("Failed to ping redis: %v", err)
		return nil, err
	}

	utils.LogStartup("Redis connection established")
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) GetItem(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		utils.LogError("redis GET %s failed: %v", key, err)
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisStore) SetItem(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		utils.LogError("redis SET %s failed: %v", key, err)
		return err
	}
	utils.LogDB("Stored %s in redis (%d bytes)", key, len(value))
	return nil
}

func (r *RedisStore) RemoveItem(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		utils.LogError("redis DEL %s failed: %v", key, err)
		return err
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
