package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// RedisCounter implements Counter on Redis INCRBY/EXPIRE.
type RedisCounter struct {
	client *redis.Client
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCounter connects to Redis. The caller is responsible for checking
// connectivity (see Ping).
func NewRedisCounter(cfg RedisConfig) (*RedisCounter, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &RedisCounter{client: client}, nil
}

// NewRedisCounterFromClient wraps an existing client. Useful with miniredis.
func NewRedisCounterFromClient(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// Ping checks connectivity.
func (r *RedisCounter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// WaitReady pings Redis with exponential backoff until it answers or maxWait
// elapses. Only used at startup.
func (r *RedisCounter) WaitReady(ctx context.Context, maxWait time.Duration, logger *slog.Logger) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxWait

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := r.Ping(ctx)
		if err != nil && logger != nil {
			logger.Warn("redis not ready", "attempt", attempt, "error", err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

// Incr implements Counter.
func (r *RedisCounter) Incr(ctx context.Context, key string, by int64) (int64, error) {
	n, err := r.client.IncrBy(ctx, key, by).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incrby %s: %w", key, err)
	}
	return n, nil
}

// Expire implements Counter.
func (r *RedisCounter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("redis expire %s: %w", key, err)
	}
	return nil
}

// IncrWithTTL implements Counter with INCRBY and EXPIRE in one MULTI/EXEC.
func (r *RedisCounter) IncrWithTTL(ctx context.Context, key string, by int64, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.IncrBy(ctx, key, by)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis incrby+expire %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Get implements Counter.
func (r *RedisCounter) Get(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return n, nil
}

// Close closes the client.
func (r *RedisCounter) Close() error {
	return r.client.Close()
}
