// Package kvstore provides durable key/value persistence for small blobs
// such as the serialized auth session.
package kvstore

import (
	"context"
	"errors"
)

// Store modes.
const (
	ModeMemory   = "memory"
	ModeFile     = "file"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"
)

// ErrInvalidKey is returned for keys a store cannot represent.
var ErrInvalidKey = errors.New("invalid key")

// Store persists opaque values by key.
type Store interface {
	// Get returns the value for key, or nil, nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Mode returns the store's mode name.
	Mode() string
}
