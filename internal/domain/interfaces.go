package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Store is a durable string-keyed blob store holding JSON documents.
// Implemented by infra/sqlite.DB and infra/redisstore.Store.
type Store interface {
	// Get returns the blob for key, or ErrNotFound if absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set overwrites the blob for key.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Pinger is optionally implemented by stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Clock is the single source of "now" for the engines.
type Clock interface {
	Now() time.Time
}
