package port

import "context"

// IdempotencyStore remembers the outcome of client requests so a retried
// request with the same key is answered without touching the aggregate again.
type IdempotencyStore interface {
	// Lookup returns the stored result for key and whether one exists.
	Lookup(ctx context.Context, key string) (string, bool, error)

	// Remember stores result for key unless a result is already stored.
	Remember(ctx context.Context, key, result string) error
}
