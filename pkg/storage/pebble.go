package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pion/logging"
)

// PebbleConfig configures a Pebble-backed store.
type PebbleConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database on an in-memory filesystem.
	InMemory bool

	// NoSync skips the WAL fsync on writes. Writes then survive a process
	// crash but not a power loss.
	NoSync bool

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// PebbleStorage is a PersistentStorageDelegate backed by a Pebble LSM.
type PebbleStorage struct {
	mu        sync.RWMutex
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	log       logging.LeveledLogger
}

// NewPebbleStorage opens (or creates) a Pebble database.
func NewPebbleStorage(config PebbleConfig) (*PebbleStorage, error) {
	opts := &pebble.Options{}
	path := config.Path
	if config.InMemory {
		opts.FS = vfs.NewMem()
		path = ""
	} else if path == "" {
		return nil, fmt.Errorf("storage: pebble path is required")
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open pebble %q: %w", path, err)
	}

	s := &PebbleStorage{
		db:        db,
		writeOpts: pebble.Sync,
	}
	if config.NoSync {
		s.writeOpts = pebble.NoSync
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("storage-pebble")
		s.log.Debugf("opened pebble store at %q (in-memory=%v)", path, config.InMemory)
	}
	return s, nil
}

// SyncGetKeyValue implements PersistentStorageDelegate.
func (s *PebbleStorage) SyncGetKeyValue(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrClosed
	}
	value, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// value is only valid until closer is closed.
	return cloneBytes(value), nil
}

// SyncSetKeyValue implements PersistentStorageDelegate.
func (s *PebbleStorage) SyncSetKeyValue(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return ErrClosed
	}
	return s.db.Set([]byte(key), value, s.writeOpts)
}

// SyncDeleteKeyValue implements PersistentStorageDelegate.
func (s *PebbleStorage) SyncDeleteKeyValue(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	// Pebble deletes are blind. The existence check and the tombstone must
	// not interleave with a Set of the same key.
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}
	_, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrKeyNotFound
	}
	if err != nil {
		return err
	}
	closer.Close()

	return s.db.Delete([]byte(key), s.writeOpts)
}

// Close flushes and closes the database.
func (s *PebbleStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if s.log != nil {
		s.log.Debug("closed pebble store")
	}
	return err
}

var _ Backend = (*PebbleStorage)(nil)
