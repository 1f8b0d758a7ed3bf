package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

var _ Storage = (*RedisStorage)(nil)

type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{
		client: client,
	}
}

// Client is shared with the write rate limiter.
func (s *RedisStorage) Client() *redis.Client {
	return s.client
}

func redisKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

func (s *RedisStorage) Get(ctx context.Context, namespace, key string) (string, error) {
	value, err := s.client.Get(ctx, redisKey(namespace, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

func (s *RedisStorage) Put(ctx context.Context, namespace, key, value string) error {
	if err := s.client.Set(ctx, redisKey(namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStorage) Close() error {
	return s.client.Close()
}
