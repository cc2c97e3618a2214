package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// keyPrefix namespaces artifact keys inside the database.
const keyPrefix = "artifact/"

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites fsyncs every transaction.
	SyncWrites bool

	// Logger receives badger's internal logging. Nil disables it.
	Logger *slog.Logger
}

// BadgerStore keeps artifacts as keys in an embedded BadgerDB.
// A PutAll batch is a single transaction.
type BadgerStore struct {
	db   *badger.DB
	path string

	mu     sync.RWMutex
	closed bool
}

// Ensure BadgerStore implements Store.
var _ Store = (*BadgerStore)(nil)

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens a badger-backed store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With("component", "badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db, path: cfg.Path}, nil
}

// PutAll implements Store.
func (s *BadgerStore) PutAll(entries []Entry) error {
	for _, e := range entries {
		if err := validName(e.Name); err != nil {
			return err
		}
	}
	return s.update(func(txn *badger.Txn) error {
		for _, e := range entries {
			if err := txn.Set(key(e.Name), e.Data); err != nil {
				return fmt.Errorf("set %s: %w", e.Name, err)
			}
		}
		return nil
	})
}

// Get implements Store.
func (s *BadgerStore) Get(name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	var data []byte
	err := s.view(func(txn *badger.Txn) error {
		item, err := txn.Get(key(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	return data, err
}

// Delete implements Store.
func (s *BadgerStore) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	return s.update(func(txn *badger.Txn) error {
		return txn.Delete(key(name))
	})
}

// List implements Store. Keys iterate in byte order, so names come back sorted.
func (s *BadgerStore) List(prefix string) ([]string, error) {
	var names []string
	p := key(prefix)
	err := s.view(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: p})
		defer it.Close()

		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			k := it.Item().KeyCopy(nil)
			names = append(names, string(k[len(keyPrefix):]))
		}
		return nil
	})
	return names, err
}

// Location implements Store.
func (s *BadgerStore) Location(name string) string {
	if s.path == "" {
		return "badger:memory#" + name
	}
	return "badger:" + s.path + "#" + name
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.Update(fn)
}

func (s *BadgerStore) view(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.View(fn)
}

func key(name string) []byte {
	return []byte(keyPrefix + name)
}
