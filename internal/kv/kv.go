// Package kv wraps the external key-value store used for upload sessions
// and guest quota counters. The store is possibly eventually consistent;
// callers own the fail-open/fail-closed policy for store errors.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or its TTL has lapsed.
var ErrNotFound = errors.New("key not found")

// ErrCASMismatch is returned by CompareAndSwap when the stored value no
// longer matches the expected one. Callers re-fetch and retry.
var ErrCASMismatch = errors.New("compare-and-swap mismatch")

// Store is the capability set the service needs from the key-value store.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put writes value at key with the given TTL, unconditionally.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// CompareAndSwap replaces the value at key only if it still equals old.
	// Returns ErrCASMismatch if the value changed or the key is gone.
	CompareAndSwap(ctx context.Context, key string, old, new []byte, ttl time.Duration) error
	// Incr atomically increments the decimal counter at key, setting the
	// TTL only when the key is created. Returns the new counter value.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Delete removes key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Ping verifies connectivity to the store.
	Ping(ctx context.Context) error
}
