// Copyright © 2018 One Concern

// Package locker provides the exclusive lock held by mutating repository operations.
//
// The lock is both process-wide (goroutines of the same process queue on a semaphore)
// and cross-process (an advisory file lock is held on the lock file).
package locker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

const defaultRetryDelay = 50 * time.Millisecond

// Option for the locker
type Option func(*Locker)

// RetryDelay sets the interval between attempts to acquire the file lock
func RetryDelay(d time.Duration) Option {
	return func(l *Locker) {
		if d > 0 {
			l.retryDelay = d
		}
	}
}

// Logger for the locker
func Logger(zl *zap.Logger) Option {
	return func(l *Locker) {
		if zl != nil {
			l.l = zl
		}
	}
}

// Locker guards a repository against concurrent mutations
type Locker struct {
	sem        chan struct{}
	file       *flock.Flock
	retryDelay time.Duration
	l          *zap.Logger
}

// New locker on a lock file. The directory of the lock file is created if needed.
func New(path string, opts ...Option) (*Locker, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating lock directory for %q: %w", path, err)
	}
	l := &Locker{
		sem:        make(chan struct{}, 1),
		file:       flock.New(path),
		retryDelay: defaultRetryDelay,
		l:          zap.NewNop(),
	}
	for _, apply := range opts {
		apply(l)
	}
	return l, nil
}

// Lock blocks until the exclusive lock is acquired, or the context is done.
//
// The returned function releases the lock.
func (l *Locker) Lock(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	start := time.Now()
	locked, err := l.file.TryLockContext(ctx, l.retryDelay)
	if err != nil || !locked {
		<-l.sem
		if err == nil {
			err = fmt.Errorf("could not lock %q", l.file.Path())
		}
		return nil, fmt.Errorf("acquiring repository lock: %w", err)
	}
	l.l.Debug("repository locked", zap.String("lock", l.file.Path()), zap.Duration("waited", time.Since(start)))

	return func() {
		if err := l.file.Unlock(); err != nil {
			l.l.Error("could not release repository lock", zap.String("lock", l.file.Path()), zap.Error(err))
		}
		<-l.sem
	}, nil
}

// TryLock acquires the lock if it is free, without waiting
func (l *Locker) TryLock() (func(), bool, error) {
	select {
	case l.sem <- struct{}{}:
	default:
		return nil, false, nil
	}
	locked, err := l.file.TryLock()
	if err != nil || !locked {
		<-l.sem
		return nil, false, err
	}
	return func() {
		if err := l.file.Unlock(); err != nil {
			l.l.Error("could not release repository lock", zap.String("lock", l.file.Path()), zap.Error(err))
		}
		<-l.sem
	}, true, nil
}

// Path of the lock file
func (l *Locker) Path() string {
	return l.file.Path()
}
