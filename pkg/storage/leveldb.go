package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/logging"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDBConfig configures a LevelDB-backed store.
type LevelDBConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in memory.
	InMemory bool

	// NoSync skips fsync on writes.
	NoSync bool

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// LevelDBStorage is a PersistentStorageDelegate backed by goleveldb.
type LevelDBStorage struct {
	mu        sync.RWMutex
	db        *leveldb.DB
	writeOpts *opt.WriteOptions
	log       logging.LeveledLogger
}

// NewLevelDBStorage opens (or creates) a LevelDB database.
func NewLevelDBStorage(config LevelDBConfig) (*LevelDBStorage, error) {
	opts := &opt.Options{
		Compression: opt.NoCompression,
	}

	var (
		db  *leveldb.DB
		err error
	)
	switch {
	case config.InMemory:
		db, err = leveldb.Open(lvlstorage.NewMemStorage(), opts)
	case config.Path == "":
		return nil, fmt.Errorf("storage: leveldb path is required")
	default:
		db, err = leveldb.OpenFile(config.Path, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open leveldb %q: %w", config.Path, err)
	}

	s := &LevelDBStorage{
		db:        db,
		writeOpts: &opt.WriteOptions{Sync: !config.NoSync},
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("storage-leveldb")
		s.log.Debugf("opened leveldb store at %q (in-memory=%v)", config.Path, config.InMemory)
	}
	return s, nil
}

// SyncGetKeyValue implements PersistentStorageDelegate.
func (s *LevelDBStorage) SyncGetKeyValue(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrClosed
	}
	value, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// SyncSetKeyValue implements PersistentStorageDelegate.
func (s *LevelDBStorage) SyncSetKeyValue(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return ErrClosed
	}
	return s.db.Put([]byte(key), value, s.writeOpts)
}

// SyncDeleteKeyValue implements PersistentStorageDelegate.
func (s *LevelDBStorage) SyncDeleteKeyValue(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}
	exists, err := s.db.Has([]byte(key), &opt.ReadOptions{DontFillCache: true})
	if err != nil {
		return err
	}
	if !exists {
		return ErrKeyNotFound
	}
	return s.db.Delete([]byte(key), s.writeOpts)
}

// Close closes the database.
func (s *LevelDBStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if s.log != nil {
		s.log.Debug("closed leveldb store")
	}
	return err
}

var _ Backend = (*LevelDBStorage)(nil)
