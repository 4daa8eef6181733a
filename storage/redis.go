package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "previewd:handle:"

// RedisStore keeps handles in redis so multiple replicas can serve the same
// preview URLs. Expiry is server-side via the key TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Put(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, redisKeyPrefix+id, data, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *RedisStore) Release(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeExpired is a no-op: redis expires keys server-side.
func (s *RedisStore) PurgeExpired(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
