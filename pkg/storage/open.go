package storage

import (
	"fmt"

	"github.com/pion/logging"
)

// Kind names a storage backend implementation.
type Kind string

// Supported backends.
const (
	KindMemory  Kind = "memory"
	KindPebble  Kind = "pebble"
	KindLevelDB Kind = "leveldb"
)

// Kinds lists the supported backends.
func Kinds() []Kind {
	return []Kind{KindMemory, KindPebble, KindLevelDB}
}

// Valid reports whether k is a supported backend.
func (k Kind) Valid() bool {
	switch k {
	case KindMemory, KindPebble, KindLevelDB:
		return true
	}
	return false
}

// OpenConfig selects and configures a backend for Open.
type OpenConfig struct {
	Kind Kind
	Path string

	// NoSync disables fsync on writes for disk backends.
	NoSync bool

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Open opens the configured backend.
func Open(config OpenConfig) (Backend, error) {
	switch config.Kind {
	case KindMemory:
		return NewMemoryStorage(), nil
	case KindPebble:
		return NewPebbleStorage(PebbleConfig{
			Path:          config.Path,
			NoSync:        config.NoSync,
			LoggerFactory: config.LoggerFactory,
		})
	case KindLevelDB:
		return NewLevelDBStorage(LevelDBConfig{
			Path:          config.Path,
			NoSync:        config.NoSync,
			LoggerFactory: config.LoggerFactory,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, config.Kind)
	}
}
