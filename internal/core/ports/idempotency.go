package ports

import "context"

// IdempotencyStore remembers the record id produced for a client-supplied
// Idempotency-Key so retried creates replay the first result.
type IdempotencyStore interface {
	Lookup(ctx context.Context, scope, key string) (id string, found bool, err error)
	Remember(ctx context.Context, scope, key, id string) error
}
