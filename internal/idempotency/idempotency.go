// Package idempotency makes retried mutating calls safe: at most one real
// ledger effect happens per (owner, client-supplied key) pair inside the
// retention window. Responses are stored only after the wrapped operation
// succeeds, so a retry after a failure always re-attempts the mutation.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"walletd/internal/cache"
	"walletd/internal/domain/wallet"
)

// Retention is how long a recorded response is replayed for.
const Retention = 24 * time.Hour

const keyPrefix = "idempotency:"

// ErrMiss is returned by Store.Get when no response is recorded for the
// key. It is the same sentinel the read cache uses, so one store
// implementation serves both.
var ErrMiss = cache.ErrMiss

// Store is the key-value backend for recorded responses. Implemented by the
// Redis client in infrastructure/redis.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Guard deduplicates mutating requests. If the store is unavailable the
// guard degrades to invoking the operation directly without recording it —
// a request must not block on the dedup cache.
type Guard struct {
	store Store
}

func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// Result is what Do hands back: the JSON-encoded response plus whether it
// was replayed from a previous call.
type Result struct {
	Body     json.RawMessage
	Replayed bool
}

// Do runs op at most once per (userID, key). A recorded response is returned
// verbatim without invoking op. key must be non-empty.
func (g *Guard) Do(ctx context.Context, userID int64, key string, op func(context.Context) (any, error)) (*Result, error) {
	if key == "" {
		return nil, wallet.NewValidationError(wallet.CodeMissingIdempotency,
			"Idempotency-Key header is required",
			wallet.FieldError{Field: "Idempotency-Key", Message: "header is required"},
		)
	}

	composite := fmt.Sprintf("%s%d:%s", keyPrefix, userID, key)

	recording := g.store != nil
	if recording {
		switch raw, err := g.store.Get(ctx, composite); {
		case err == nil:
			log.Printf("idempotency: replaying recorded response for key %s", key)
			return &Result{Body: json.RawMessage(raw), Replayed: true}, nil
		case errors.Is(err, ErrMiss):
			// First time we see this key.
		default:
			log.Printf("idempotency: store get failed, proceeding without dedup: %v", err)
			recording = false
		}
	}

	value, err := op(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(value)
	if err != nil {
		return nil, wallet.NewInfrastructureError("encoding idempotent response", err)
	}

	if recording {
		if err := g.store.Set(ctx, composite, string(body), Retention); err != nil {
			log.Printf("idempotency: store set failed for key %s: %v", key, err)
		}
	}

	return &Result{Body: body}, nil
}
