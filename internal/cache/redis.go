package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*Redis)(nil)

// Redis is a shared cache tier for multi-instance deployments. Read or write
// failures degrade to cache misses; Redis being down never fails a request.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return &Redis{client: client, logger: logger}, nil
}

// NewRedisFromClient wraps an existing client; used by tests with miniredis.
func NewRedisFromClient(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{client: client, logger: logger}
}

func (r *Redis) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	raw, err := r.client.Get(ctx, nsKey(namespace, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.WarnContext(ctx, "redis get failed, treating as miss",
				slog.String("namespace", namespace), slog.Any("error", err))
		}
		return nil, false
	}
	return raw, true
}

func (r *Redis) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, nsKey(namespace, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", namespace, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, namespace, key string) error {
	return r.client.Del(ctx, nsKey(namespace, key)).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Store = (*Tiered)(nil)

// Tiered layers a fast local tier in front of a shared one. Reads fill the
// local tier on a shared hit; writes go to both.
type Tiered struct {
	local  Store
	shared Store
}

func NewTiered(local, shared Store) *Tiered {
	return &Tiered{local: local, shared: shared}
}

func (t *Tiered) Get(ctx context.Context, namespace, key string) ([]byte, bool) {
	if raw, ok := t.local.Get(ctx, namespace, key); ok {
		return raw, true
	}
	raw, ok := t.shared.Get(ctx, namespace, key)
	if ok {
		_ = t.local.Set(ctx, namespace, key, raw, 0)
	}
	return raw, ok
}

func (t *Tiered) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	if err := t.local.Set(ctx, namespace, key, value, ttl); err != nil {
		return err
	}
	return t.shared.Set(ctx, namespace, key, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, namespace, key string) error {
	if err := t.local.Delete(ctx, namespace, key); err != nil {
		return err
	}
	return t.shared.Delete(ctx, namespace, key)
}

func (t *Tiered) Close() error {
	if err := t.local.Close(); err != nil {
		return err
	}
	return t.shared.Close()
}
