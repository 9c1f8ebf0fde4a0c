// Package metadata persists distributions, packages, stacks and registrations
// in a transactional key-value store.
//
// Every mutation runs in a single badger transaction: readers never observe a
// distribution without its packages and prerequisites.
package metadata

import (
	"context"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Option for the metadata store
type Option func(*Store)

// BaseDir sets the directory holding the database files
func BaseDir(dir string) Option {
	return func(s *Store) {
		s.baseDir = dir
	}
}

// InMemory keeps the database in memory only. This is mostly useful for tests.
func InMemory() Option {
	return func(s *Store) {
		s.inMemory = true
	}
}

// Logger for the store
func Logger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store for repository metadata, backed by badger
type Store struct {
	baseDir  string
	inMemory bool
	logger   *zap.Logger
	db       *badger.DB
	init     sync.Once
	close    sync.Once
}

// New metadata store. Initialize must be called before use.
func New(opts ...Option) *Store {
	s := &Store{
		baseDir: ".darkpan/db",
		logger:  zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

// Initialize opens the database
func (s *Store) Initialize() error {
	var err error
	s.init.Do(func() {
		var bopts badger.Options
		if s.inMemory {
			bopts = badger.DefaultOptions("").WithInMemory(true)
		} else {
			if err = os.MkdirAll(s.baseDir, 0700); err != nil {
				return
			}
			bopts = badger.DefaultOptions(s.baseDir)
		}
		bopts = bopts.
			WithLogger(badgerLogger{SugaredLogger: s.logger.Named("badger").Sugar()}).
			WithLoggingLevel(badger.WARNING)

		var db *badger.DB
		db, err = badger.Open(bopts)
		if err != nil {
			return
		}
		s.db = db
	})
	return err
}

// Close the database
func (s *Store) Close() error {
	var err error
	s.close.Do(func() {
		if s.db != nil {
			err = s.db.Close()
			if err == nil {
				s.db = nil
			}
		}
	})
	return err
}

// Ping checks that the store is usable
func (s *Store) Ping(_ context.Context) error {
	return s.view(func(_ *badger.Txn) error { return nil })
}
