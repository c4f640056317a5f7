package tokenstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 5 * time.Second

// RedisStore keeps the tokens as two plain string keys, optionally namespaced by a prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromURL connects to the Redis instance at dsn and pings it.
func NewRedisStoreFromURL(ctx context.Context, dsn string) (*RedisStore, error) {
	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.DialTimeout = redisTimeout

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return NewRedisStore(client, "myshop:"), nil
}

func (s *RedisStore) Load(ctx context.Context) (Tokens, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	values, err := s.client.MGet(ctx, s.key(KeyAccessToken), s.key(KeyRefreshToken)).Result()
	if err != nil {
		return Tokens{}, fmt.Errorf("redis mget: %w", err)
	}
	return Tokens{Access: asString(values[0]), Refresh: asString(values[1])}, nil
}

func (s *RedisStore) Save(ctx context.Context, tokens Tokens) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(KeyAccessToken), tokens.Access, 0)
		pipe.Set(ctx, s.key(KeyRefreshToken), tokens.Refresh, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.key(KeyAccessToken), s.key(KeyRefreshToken)).Err(); err != nil {
		return fmt.Errorf("redis clear tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
