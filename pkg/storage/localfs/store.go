// Copyright © 2018 One Concern

package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oneconcern/darkpan/pkg/storage"
	"github.com/oneconcern/darkpan/pkg/storage/status"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
)

/* staging area key prefix: objects are written there first, then Rename()d into place */
const nestedPutStageName = ".put-stage"

// New creates a new local file system backed archive store.
//
// Puts are atomic: files are placed in a staging area within the afero.Fs, then Rename()d into place,
// so readers never see a partially written archive.
func New(fs afero.Fs) (storage.Store, error) {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), ".")
	}
	if err := fs.MkdirAll(nestedPutStageName, 0700); err != nil {
		return nil, fmt.Errorf("ensuring put staging directory for %q: %w", nestedPutStageName, err)
	}
	return &localFS{
		fs: fs,
	}, nil
}

type localFS struct {
	fs afero.Fs
}

func cleanKey(key string) (string, error) {
	for _, part := range strings.Split(filepath.ToSlash(key), "/") {
		if part == ".." {
			return "", status.ErrInvalidResource.WrapMessage("key %q escapes the store", key)
		}
	}
	k := path.Clean("/" + filepath.ToSlash(key))[1:]
	if k == "" {
		return "", status.ErrInvalidResource.WrapMessage("key %q", key)
	}
	if k == nestedPutStageName || strings.HasPrefix(k, nestedPutStageName+"/") {
		return "", status.ErrInvalidResource.WrapMessage("key %q conflicts with put staging area name %q", key, nestedPutStageName)
	}
	return k, nil
}

func (l *localFS) Has(_ context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	fi, err := l.fs.Stat(k)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	return !fi.IsDir(), nil
}

func (l *localFS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	has, err := l.Has(ctx, key)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, status.ErrNotExists.WrapMessage("key %q", key)
	}
	k, _ := cleanKey(key)
	return l.fs.Open(k)
}

func (l *localFS) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	if exclusive {
		has, err := l.Has(ctx, k)
		if err != nil {
			return err
		}
		if has {
			return status.ErrExists.WrapMessage("key %q", k)
		}
	}

	stageKey := path.Join(nestedPutStageName, path.Base(k)+"."+ksuid.New().String())
	if err = l.write(stageKey, source); err != nil {
		_ = l.fs.Remove(stageKey)
		return status.ErrWrite.WrapMessage("key %q", k).Wrap(err)
	}

	/* Rename() doesn't create directories automatically */
	if err = l.fs.MkdirAll(path.Dir(k), 0700); err != nil {
		_ = l.fs.Remove(stageKey)
		return status.ErrWrite.WrapMessage("ensuring directories for %q", k).Wrap(err)
	}
	if err = l.fs.Rename(stageKey, k); err != nil {
		_ = l.fs.Remove(stageKey)
		return status.ErrWrite.WrapMessage("key %q", k).Wrap(err)
	}
	return nil
}

func (l *localFS) write(key string, source io.Reader) error {
	if err := l.fs.MkdirAll(path.Dir(key), 0700); err != nil {
		return err
	}
	target, err := l.fs.OpenFile(key, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err = storage.PipeIO(target, source); err != nil {
		_ = target.Close()
		return err
	}
	if err = target.Sync(); err != nil {
		_ = target.Close()
		return err
	}
	return target.Close()
}

func (l *localFS) Keys(ctx context.Context) ([]string, error) {
	return l.KeysPrefix(ctx, "")
}

func (l *localFS) KeysPrefix(_ context.Context, prefix string) ([]string, error) {
	root := "."
	if dir := path.Dir(filepath.ToSlash(prefix)); prefix != "" && dir != "." {
		root = dir
	}
	if _, err := l.fs.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var res []string
	e := afero.Walk(l.fs, root, func(pth string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		key := filepath.ToSlash(pth)
		if info.IsDir() {
			if key == nestedPutStageName {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(key, prefix) {
			res = append(res, key)
		}
		return nil
	})
	if e != nil {
		return nil, e
	}
	sort.Strings(res)
	return res, nil
}

// ClearStage removes leftovers from interrupted puts
func ClearStage(fs afero.Fs) error {
	if err := fs.RemoveAll(nestedPutStageName); err != nil {
		return err
	}
	return fs.MkdirAll(nestedPutStageName, 0700)
}

func (l *localFS) String() string {
	const localfs = "localfs"
	switch fs := l.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	default:
		return localfs
	}
}
