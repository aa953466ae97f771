// Package store provides key/value persistence backends for run state.
//
// Memory snapshots are saved under a key (usually the run ID) as JSON
// documents. MemoryAdapter keeps them in process; FileAdapter writes one
// file per key under a directory.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrInvalidKey is returned for keys that cannot be stored.
var ErrInvalidKey = errors.New("store: invalid key")

// Adapter defines the interface for persistence backends.
// Implementations must be thread-safe.
type Adapter interface {
	// Get retrieves a value by key. Returns nil, false, nil if not found.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Set stores a value by key, replacing any previous value.
	Set(ctx context.Context, key string, value json.RawMessage) error

	// Delete removes a key. No error if key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys in ascending order.
	Keys(ctx context.Context) ([]string, error)
}
