// Package storage provides the synchronous key-value persistence used by
// node state such as the binding table.
//
// A PersistentStorageDelegate is a flat namespace of string keys mapped to
// opaque values. Writes are synchronous: once SyncSetKeyValue returns nil
// the value survives a restart. Implementations are provided for memory
// (tests and ephemeral nodes), Pebble and LevelDB.
package storage

import (
	"errors"
	"fmt"
)

// Storage errors.
var (
	// ErrKeyNotFound is returned when reading or deleting a key that has no value.
	ErrKeyNotFound = errors.New("storage: key not found")

	// ErrInvalidKey is returned for empty keys or keys longer than MaxKeyLength.
	ErrInvalidKey = errors.New("storage: invalid key")

	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("storage: closed")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("storage: unknown backend")
)

// MaxKeyLength is the longest key a delegate must accept.
const MaxKeyLength = 32

// PersistentStorageDelegate is the key-value store consumed by persisted
// tables. All methods are synchronous and must be safe for concurrent use.
type PersistentStorageDelegate interface {
	// SyncGetKeyValue returns the value stored under key, or ErrKeyNotFound.
	// The returned slice is owned by the caller.
	SyncGetKeyValue(key string) ([]byte, error)

	// SyncSetKeyValue durably stores value under key, replacing any
	// previous value.
	SyncSetKeyValue(key string, value []byte) error

	// SyncDeleteKeyValue removes key, or returns ErrKeyNotFound.
	SyncDeleteKeyValue(key string) error
}

// Backend is a PersistentStorageDelegate that holds resources.
type Backend interface {
	PersistentStorageDelegate
	Close() error
}

func validateKey(key string) error {
	if key == "" || len(key) > MaxKeyLength {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
