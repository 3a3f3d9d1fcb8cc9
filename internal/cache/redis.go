package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	idempotencyPrefix  = "order:idem:"
	idempotencyPending = "pending"
)

type RedisClient struct {
	client redis.Cmdable
	closer func() error
	log    *zap.Logger
}

func NewRedisClient(addr, password string, db int, log *zap.Logger) (*RedisClient, error) {
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

	log.Info("Redis connected successfully", zap.String("addr", addr))

	return &RedisClient{client: rdb, closer: rdb.Close, log: log}, nil
}

// NewFromCmdable wraps an existing client, e.g. a cluster client.
func NewFromCmdable(c redis.Cmdable, log *zap.Logger) *RedisClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisClient{client: c, closer: func() error { return nil }, log: log}
}

func (r *RedisClient) Close() error {
	return r.closer()
}

func idempotencyKey(key string) string {
	return idempotencyPrefix + key
}

// Reserve захватывает ключ идемпотентности. Если ключ уже занят, возвращает
// номер заказа первого запроса либо пустую строку, пока тот ещё выполняется.
func (r *RedisClient) Reserve(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	k := idempotencyKey(key)
	ok, err := r.client.SetNX(ctx, k, idempotencyPending, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}

	val, err := r.client.Get(ctx, k).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// ключ истёк между SETNX и GET
		ok, err = r.client.SetNX(ctx, k, idempotencyPending, ttl).Result()
		if err != nil {
			return "", false, err
		}
		return "", ok, nil
	case err != nil:
		return "", false, err
	case val == idempotencyPending:
		return "", false, nil
	}
	return val, false, nil
}

func (r *RedisClient) Complete(ctx context.Context, key, orderNumber string, ttl time.Duration) error {
	return r.client.Set(ctx, idempotencyKey(key), orderNumber, ttl).Err()
}

func (r *RedisClient) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKey(key)).Err()
}
