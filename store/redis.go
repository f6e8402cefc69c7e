package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is returned when the redis backend cannot be reached.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Redis is a SessionStore backed by a redis instance, for deployments where
// session state must survive a process restart or be shared between
// replicas.  Keys are namespaced per client instance so two clients with
// different namespaces never observe each other's session data.
type Redis struct {
	client    *redis.Client
	namespace string
}

// ensure that Redis implements the SessionStore interface
var _ SessionStore = (*Redis)(nil)

// NewRedis creates a Redis store on top of an existing client.  The
// namespace must be non-empty since an empty namespace would collide with
// any other store sharing the same redis instance.
func NewRedis(client *redis.Client, namespace string) (*Redis, error) {
	const op = "store.NewRedis"
	if client == nil {
		return nil, fmt.Errorf("%s: redis client is nil: %w", op, ErrNilParameter)
	}
	if namespace == "" {
		return nil, fmt.Errorf("%s: namespace is empty: %w", op, ErrNilParameter)
	}
	return &Redis{
		client:    client,
		namespace: namespace,
	}, nil
}

func (s *Redis) key(key string) string {
	return s.namespace + ":" + key
}

// Get returns the value for key, or ErrKeyNotFound.
func (s *Redis) Get(ctx context.Context, key string) (string, error) {
	const op = "store.(Redis).Get"
	v, err := s.client.Get(ctx, s.key(key)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", fmt.Errorf("%s: %q: %w", op, key, ErrKeyNotFound)
	case err != nil:
		return "", fmt.Errorf("%s: %w: %v", op, ErrRedisUnavailable, err)
	}
	return v, nil
}

// Set stores value under key, overwriting any existing value.
func (s *Redis) Set(ctx context.Context, key string, value string) error {
	const op = "store.(Redis).Set"
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrRedisUnavailable, err)
	}
	return nil
}

// Remove deletes the value for key.  Removing an absent key is not an error.
func (s *Redis) Remove(ctx context.Context, key string) error {
	const op = "store.(Redis).Remove"
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrRedisUnavailable, err)
	}
	return nil
}
