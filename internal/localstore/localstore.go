// Package localstore is the client-local persistent storage consumed by the
// inventory core: pending reduction records, the blacklist mirror and the
// last-order marker all live here, keyed per session. Two implementations
// exist: an in-memory store for tests and single-process runs, and a Redis
// store for anything that must survive a restart.
package localstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("localstore: key not found")

// Store is a minimal durable key/value surface.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns all entries whose key starts with prefix.
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}
