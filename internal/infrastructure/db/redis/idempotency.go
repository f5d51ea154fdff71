package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyStore remembers which record a create request produced.
// Key format: idem:<scope>:<idempotency_key>
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore wraps the given Redis client. A non-positive ttl falls
// back to 24h.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Lookup returns the record id stored for this key, if any.
func (s *IdempotencyStore) Lookup(ctx context.Context, scope, key string) (string, bool, error) {
	id, err := s.client.Get(ctx, idempotencyKey(scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return id, true, nil
}

// Remember stores id under the key unless an earlier request already did.
func (s *IdempotencyStore) Remember(ctx context.Context, scope, key, id string) error {
	if err := s.client.SetNX(ctx, idempotencyKey(scope, key), id, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}

func idempotencyKey(scope, key string) string {
	return fmt.Sprintf("idem:%s:%s", scope, key)
}
