// Copyright © 2018 One Concern

package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oneconcern/darkpan/pkg/config"
	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/extractor"
	"github.com/oneconcern/darkpan/pkg/fetch"
	"github.com/oneconcern/darkpan/pkg/fingerprint"
	"github.com/oneconcern/darkpan/pkg/index"
	"github.com/oneconcern/darkpan/pkg/locker"
	"github.com/oneconcern/darkpan/pkg/metadata"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	"github.com/oneconcern/darkpan/pkg/storage"
	"github.com/oneconcern/darkpan/pkg/storage/localfs"
	"github.com/oneconcern/darkpan/pkg/vcs"
	vcsstatus "github.com/oneconcern/darkpan/pkg/vcs/status"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	defaultUsername = "darkpan"

	// RegistryFile is the index of the packages registered on a stack, committed on the stack branch
	RegistryFile = index.IndexFile

	stacksDir       = "stacks"
	dbDir           = "db"
	cacheDir        = "cache"
	recoveryDir     = "recovery"
	tmpDir          = "tmp"
	lockFile        = "lock"
	breakerInterval = 30 * time.Second
)

// Repository of distributions, with stacks of registered packages
type Repository struct {
	root         string
	internal     string
	cfg          *config.Repository
	meta         MetadataStore
	archives     storage.Store
	history      History
	locker       Locker
	index        IndexCache
	extractor    extractor.Extractor
	fetcher      fetch.Fetcher
	fingerprints *fingerprint.Maker
	username     string
	l            *zap.Logger
	closers      []func() error
}

// Init creates a new repository at root, with a default stack.
//
// It fails with status.ErrAlreadyInitialized when a repository exists there already.
func Init(ctx context.Context, root string, opts ...Option) (*Repository, error) {
	s := defaultSettings()
	for _, apply := range opts {
		apply(s)
	}
	cfg := s.config
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, status.ErrInvalidInput.WrapMessage("configuration").Wrap(err)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, status.ErrInvalidInput.WrapMessage("repository root %q", root).Wrap(err)
	}
	if _, err = os.Stat(config.File(root)); err == nil {
		return nil, status.ErrAlreadyInitialized.WrapMessage("%s", root)
	}

	history, err := vcs.Initialize(filepath.Join(root, config.Dir, stacksDir), vcs.Logger(s.l))
	if err != nil {
		if errors.Is(err, vcsstatus.ErrAlreadyInitialized) {
			return nil, status.ErrAlreadyInitialized.WrapMessage("%s", root).Wrap(err)
		}
		return nil, err
	}
	if err = cfg.Save(config.File(root)); err != nil {
		return nil, fmt.Errorf("saving repository configuration: %w", err)
	}

	r, err := assemble(root, cfg, history, s)
	if err != nil {
		return nil, err
	}
	if err = r.initDefaultStack(ctx); err != nil {
		_ = r.Close()
		return nil, err
	}
	r.l.Info("initialized repository", zap.String("default_stack", cfg.DefaultStack))
	return r, nil
}

func (r *Repository) initDefaultStack(ctx context.Context) error {
	unlock, l, err := r.lock(ctx, "init")
	if err != nil {
		return err
	}
	defer unlock()

	name := r.cfg.DefaultStack
	stack := model.Stack{Name: name, IsDefault: true}
	if err = r.meta.CreateStack(ctx, stack, ""); err != nil {
		return fmt.Errorf("creating default stack %q: %w", name, err)
	}
	if err = r.history.CreateInitialBranch(name); err != nil {
		return fmt.Errorf("creating branch of default stack %q: %w", name, err)
	}
	if err = r.commitRegistry(ctx, name, "", true); err != nil {
		return err
	}
	l.Info("created default stack", zap.String("stack", name))
	return nil
}

// Open an existing repository.
//
// It fails with status.ErrNotInitialized when there is no repository at root.
func Open(root string, opts ...Option) (*Repository, error) {
	s := defaultSettings()
	for _, apply := range opts {
		apply(s)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, status.ErrInvalidInput.WrapMessage("repository root %q", root).Wrap(err)
	}
	cfg, err := config.Load(config.File(root))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, status.ErrNotInitialized.WrapMessage("%s", root)
		}
		return nil, err
	}

	history, err := vcs.Open(filepath.Join(root, config.Dir, stacksDir), vcs.Logger(s.l))
	if err != nil {
		if errors.Is(err, vcsstatus.ErrNotInitialized) {
			return nil, status.ErrNotInitialized.WrapMessage("%s", root).Wrap(err)
		}
		return nil, err
	}
	return assemble(root, cfg, history, s)
}

func assemble(root string, cfg *config.Repository, history History, s *settings) (*Repository, error) {
	internal := filepath.Join(root, config.Dir)
	r := &Repository{
		root:         root,
		internal:     internal,
		cfg:          cfg,
		history:      history,
		meta:         s.meta,
		archives:     s.archives,
		locker:       s.locker,
		index:        s.index,
		extractor:    s.extractor,
		fetcher:      s.fetcher,
		fingerprints: fingerprint.New(),
		username:     s.username,
		l:            s.l.With(zap.String("repository", root)),
	}

	for _, dir := range []string{recoveryDir, tmpDir, cacheDir} {
		if err := os.MkdirAll(filepath.Join(internal, dir), 0700); err != nil {
			return nil, fmt.Errorf("creating %s directory: %w", dir, err)
		}
	}

	if r.meta == nil {
		store := metadata.New(metadata.BaseDir(filepath.Join(internal, dbDir)), metadata.Logger(s.l))
		if err := store.Initialize(); err != nil {
			return nil, fmt.Errorf("opening metadata store: %w", err)
		}
		r.meta = store
	}
	r.closers = append(r.closers, r.meta.Close)

	if r.archives == nil {
		archives, err := localArchiveStore(root)
		if err != nil {
			_ = r.Close()
			return nil, fmt.Errorf("opening archive store: %w", err)
		}
		r.archives = archives
	}

	if r.locker == nil {
		lk, err := locker.New(filepath.Join(internal, lockFile), locker.Logger(s.l))
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.locker = lk
	}

	if r.fetcher == nil {
		client := fetch.New(
			fetch.WithUserAgent(cfg.Fetch.UserAgent),
			fetch.WithMaxRetries(cfg.Fetch.Retries),
			fetch.WithBaseDelay(cfg.Fetch.BaseDelay),
			fetch.WithCircuitBreaker(cfg.Fetch.BreakerThreshold, breakerInterval),
			fetch.WithLogger(s.l),
		)
		r.fetcher = client
		r.closers = append(r.closers, func() error {
			client.Close()
			return nil
		})
	}

	if r.index == nil {
		r.index = index.New(r.fetcher,
			index.Sources(cfg.Sources...),
			index.CacheDir(filepath.Join(internal, cacheDir)),
			index.Concurrency(cfg.Index.Concurrency),
			index.Logger(s.l),
		)
	}

	if r.extractor == nil {
		r.extractor = extractor.New(extractor.Logger(s.l))
	}
	return r, nil
}

// localArchiveStore keeps archives under the authors/id directory of the repository root
func localArchiveStore(root string) (storage.Store, error) {
	return localfs.New(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// Close releases the stores of the repository
func (r *Repository) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// Root directory of the repository
func (r *Repository) Root() string {
	return r.root
}

// Config of the repository
func (r *Repository) Config() config.Repository {
	return *r.cfg
}

// InvalidateIndex drops the cached upstream indexes
func (r *Repository) InvalidateIndex() error {
	return r.index.Invalidate()
}

// Locate the upstream distribution providing a package
func (r *Repository) Locate(ctx context.Context, name, version string) (index.Entry, bool, error) {
	return r.index.Locate(ctx, name, version)
}

// Search the upstream indexes for packages starting with prefix
func (r *Repository) Search(ctx context.Context, prefix string) ([]index.Entry, error) {
	return r.index.Search(ctx, prefix)
}

// lock acquires the exclusive repository lock for a mutating operation.
//
// The returned logger carries the id of the operation.
func (r *Repository) lock(ctx context.Context, operation string, fields ...zap.Field) (func(), *zap.Logger, error) {
	id := ksuid.New().String()
	l := r.l.With(append([]zap.Field{zap.String("operation", operation), zap.String("op_id", id)}, fields...)...)

	unlock, err := r.locker.Lock(ctx)
	if err != nil {
		l.Error("could not lock repository", zap.Error(err))
		return nil, nil, err
	}
	return unlock, l, nil
}
