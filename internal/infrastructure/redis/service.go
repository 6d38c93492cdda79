// Package redis wraps the ephemeral backing store behind a small capability
// interface. Call sites never check for an absent client: when the store is
// unconfigured or unreachable, a no-op implementation is selected at
// construction time instead.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("redis: key not found")

// ErrUnavailable is returned by the no-op store's Ping so callers that need
// real persistence can fall back to an in-memory alternative.
var ErrUnavailable = errors.New("redis: store unavailable")

// Store is the capability surface the core needs from the backing store:
// keyed values with TTL for sessions, and ordered append-only lists with
// TTL for event channels.
type Store interface {
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	Append(ctx context.Context, key, value string) error
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Ping(ctx context.Context) error
	Close() error
}

// Service is the live go-redis implementation of Store.
type Service struct {
	client *redis.Client
}

// NewStore connects to the configured endpoint, or returns the no-op store
// when no endpoint is configured or the connection cannot be established.
func NewStore(addr, password string) Store {
	if addr == "" {
		log.Warn().Msg("Redis URL not configured - event streaming and session persistence degrade to best-effort")
		return Noop{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Error().
			Err(err).
			Str("addr", addr).
			Msg("Failed to establish Redis connection")
		return Noop{}
	}

	return &Service{client: client}
}

// Set stores a value with an expiration.
func (s *Service) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	if err := s.client.Set(ctx, key, value, expiration).Err(); err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Dur("expiration", expiration).
			Msg("Redis SET operation failed")
		return err
	}
	return nil
}

// Get retrieves a value, mapping key misses to ErrNotFound.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("Redis GET operation failed")
		return "", err
	}
	return val, nil
}

// Delete removes a key.
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

// Append pushes a value onto the tail of the list at key.
func (s *Service) Append(ctx context.Context, key, value string) error {
	if err := s.client.RPush(ctx, key, value).Err(); err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("Redis RPUSH operation failed")
		return err
	}
	return nil
}

// Range returns list elements between start and stop inclusive, in append
// order. A missing or expired key yields an empty slice, not an error.
func (s *Service) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("Redis LRANGE operation failed")
		return nil, err
	}
	return vals, nil
}

// Expire refreshes the TTL on key.
func (s *Service) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

// Ping checks if the store is accessible.
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the connection.
func (s *Service) Close() error {
	return s.client.Close()
}
