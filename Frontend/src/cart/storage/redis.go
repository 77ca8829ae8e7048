package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const redisAttempts = 10

// Redis stores values as plain string keys.
type Redis struct {
	client *redis.Client
}

// NewRedis accepts either a redis:// URL or a bare host:port.
func NewRedis(addr string) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("storage: redis address is required")
	}
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{
			Addr:         addr,
			MinIdleConns: 1,
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     4,
		}
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

// Initialize waits for the server to answer PING, backing off between attempts.
func (r *Redis) Initialize(ctx context.Context) error {
	for i := 0; i < redisAttempts; i++ {
		err := r.Ping(ctx)
		if err == nil {
			log.Info().Int("attempt", i+1).Msg("redis: connected")
			return nil
		}
		backoff := time.Duration(250*(1<<uint(i))) * time.Millisecond
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
		log.Warn().Err(err).Int("attempt", i+1).Dur("backoff", backoff).Msg("redis: ping failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("storage: redis unreachable after %d attempts", redisAttempts)
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.client.Ping(pingCtx).Err()
}

func (r *Redis) Close() error { return r.client.Close() }
