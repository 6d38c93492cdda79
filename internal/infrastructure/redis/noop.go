package redis

import (
	"context"
	"time"
)

// Noop is the store used when no backing store is reachable. Writes succeed
// without effect and reads come back empty, so telemetry degrades silently
// while conversation progression is unaffected.
type Noop struct{}

func (Noop) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	return nil
}

func (Noop) Get(ctx context.Context, key string) (string, error) {
	return "", ErrNotFound
}

func (Noop) Delete(ctx context.Context, key string) error {
	return nil
}

func (Noop) Append(ctx context.Context, key, value string) error {
	return nil
}

func (Noop) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return nil, nil
}

func (Noop) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return nil
}

func (Noop) Ping(ctx context.Context) error {
	return ErrUnavailable
}

func (Noop) Close() error {
	return nil
}
