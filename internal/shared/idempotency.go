package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPending = "pending"

// ErrIdempotencyInFlight indicates the same key is still being processed.
var ErrIdempotencyInFlight = fmt.Errorf("%w: idempotent request still in progress", ErrConflict)

// IdempotencyStore remembers the outcome of requests carrying an
// Idempotency-Key so client retries do not repeat side effects.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore constructs the store. A zero ttl keeps keys for 24 hours.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

func idempotencyKey(scope string, actorID int64, key string) string {
	return fmt.Sprintf("idempotency:%s:%d:%s", scope, actorID, key)
}

// Reserve claims key for actorID. When the key was already completed the
// stored result is returned with reserved=false. A key reserved but not yet
// completed yields ErrIdempotencyInFlight.
func (s *IdempotencyStore) Reserve(ctx context.Context, scope string, actorID int64, key string) (result string, reserved bool, err error) {
	if s == nil || s.client == nil {
		return "", true, nil
	}
	if key == "" || scope == "" {
		return "", false, errors.New("idempotency scope and key required")
	}
	redisKey := idempotencyKey(scope, actorID, key)
	ok, err := s.client.SetNX(ctx, redisKey, idempotencyPending, s.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return "", true, nil
	}
	existing, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; let the caller retry.
		return "", false, ErrIdempotencyInFlight
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}
	if existing == idempotencyPending {
		return "", false, ErrIdempotencyInFlight
	}
	return existing, false, nil
}

// Complete stores the result of a reserved key.
func (s *IdempotencyStore) Complete(ctx context.Context, scope string, actorID int64, key, result string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Set(ctx, idempotencyKey(scope, actorID, key), result, s.ttl).Err()
}

// Release forgets a reserved key, typically after the request failed.
func (s *IdempotencyStore) Release(ctx context.Context, scope string, actorID int64, key string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, idempotencyKey(scope, actorID, key)).Err()
}
