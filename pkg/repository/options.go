// Copyright © 2018 One Concern

package repository

import (
	"github.com/oneconcern/darkpan/pkg/config"
	"github.com/oneconcern/darkpan/pkg/extractor"
	"github.com/oneconcern/darkpan/pkg/fetch"
	"github.com/oneconcern/darkpan/pkg/storage"
	"go.uber.org/zap"
)

// Option for the repository
type Option func(*settings)

type settings struct {
	config    *config.Repository
	meta      MetadataStore
	archives  storage.Store
	extractor extractor.Extractor
	fetcher   fetch.Fetcher
	index     IndexCache
	locker    Locker
	username  string
	l         *zap.Logger
}

func defaultSettings() *settings {
	return &settings{
		username: defaultUsername,
		l:        zap.NewNop(),
	}
}

// WithConfig sets the configuration of a new repository. Open reads it from the repository instead.
func WithConfig(c *config.Repository) Option {
	return func(s *settings) {
		s.config = c
	}
}

// WithMetadataStore replaces the badger metadata store. The store must be ready for use:
// it is closed with the repository.
func WithMetadataStore(m MetadataStore) Option {
	return func(s *settings) {
		s.meta = m
	}
}

// WithArchiveStore replaces the local archive store
func WithArchiveStore(st storage.Store) Option {
	return func(s *settings) {
		s.archives = st
	}
}

// WithExtractor replaces the META-based package extractor
func WithExtractor(e extractor.Extractor) Option {
	return func(s *settings) {
		s.extractor = e
	}
}

// WithFetcher replaces the http fetcher used by Pull
func WithFetcher(f fetch.Fetcher) Option {
	return func(s *settings) {
		s.fetcher = f
	}
}

// WithIndexCache replaces the index cache used by PullPackage
func WithIndexCache(c IndexCache) Option {
	return func(s *settings) {
		s.index = c
	}
}

// WithLocker replaces the file lock guarding mutations
func WithLocker(lk Locker) Option {
	return func(s *settings) {
		s.locker = lk
	}
}

// WithUsername sets the author of the stack history entries
func WithUsername(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.username = name
		}
	}
}

// WithLogger for the repository and its components
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.l = l
		}
	}
}

// AddOption tunes Add and Pull
type AddOption func(*addOptions)

type addOptions struct {
	source string
	stack  string
}

// WithSource records the origin of the archive. It defaults to LOCAL.
func WithSource(source string) AddOption {
	return func(o *addOptions) {
		o.source = source
	}
}

// WithStack registers the packages of the new distribution onto a stack
func WithStack(name string) AddOption {
	return func(o *addOptions) {
		o.stack = name
	}
}

// PackageOption tunes GetPackage
type PackageOption func(*packageOptions)

type packageOptions struct {
	stack *StackRef
}

// OnStack looks up the package registered on a stack, rather than the latest one
func OnStack(ref StackRef) PackageOption {
	return func(o *packageOptions) {
		o.stack = &ref
	}
}

// StackOption tunes GetStack
type StackOption func(*stackOptions)

type stackOptions struct {
	allowMissing bool
}

// AllowMissing makes GetStack return false rather than an error when the stack does not exist
func AllowMissing() StackOption {
	return func(o *stackOptions) {
		o.allowMissing = true
	}
}

// CreateOption tunes CreateStack
type CreateOption func(*createOptions)

type createOptions struct {
	from string
}

// Fork sets the stack to copy. It defaults to the default stack.
func Fork(from string) CreateOption {
	return func(o *createOptions) {
		o.from = from
	}
}

// RecoverOption tunes Recover
type RecoverOption func(*recoverOptions)

type recoverOptions struct {
	rollback bool
}

// Rollback removes the metadata of partially ingested distributions, instead of retrying their placement
func Rollback() RecoverOption {
	return func(o *recoverOptions) {
		o.rollback = true
	}
}

// CheckOption tunes the consistency check of a repository
type CheckOption func(*checkOptions)

type checkOptions struct {
	verify      bool
	concurrency int
}

// VerifyArchives makes the check compare the content of every stored archive with its recorded identity,
// with at most concurrency archives read at a time
func VerifyArchives(concurrency int) CheckOption {
	return func(o *checkOptions) {
		o.verify = true
		if concurrency > 0 {
			o.concurrency = concurrency
		}
	}
}
