// Copyright © 2018 One Concern

package localfs

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/storage"
	"github.com/oneconcern/darkpan/pkg/storage/status"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fooKey = "authors/id/J/JE/JEFF/Foo-1.0.tar.gz"
	barKey = "authors/id/A/AL/ALICE/Bar-2.1.tar.gz"
)

func setupStore(t testing.TB, fs afero.Fs) storage.Store {
	bs, err := New(fs)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, bs.Put(ctx, fooKey, strings.NewReader("foo archive"), storage.NoOverWrite))
	require.NoError(t, bs.Put(ctx, barKey, strings.NewReader("bar archive"), storage.NoOverWrite))
	return bs
}

func TestHas(t *testing.T) {
	bs := setupStore(t, afero.NewMemMapFs())

	has, err := bs.Has(context.Background(), fooKey)
	require.NoError(t, err)
	require.True(t, has)

	has, err = bs.Has(context.Background(), "authors/id/J/JE/JEFF/Foo-2.0.tar.gz")
	require.NoError(t, err)
	require.False(t, has)

	has, err = bs.Has(context.Background(), "authors/id/J/JE/JEFF")
	require.NoError(t, err)
	require.False(t, has, "directories are not objects")
}

func TestGet(t *testing.T) {
	bs := setupStore(t, afero.NewMemMapFs())

	rdr, err := bs.Get(context.Background(), barKey)
	require.NoError(t, err)
	b, err := io.ReadAll(rdr)
	require.NoError(t, err)
	require.NoError(t, rdr.Close())
	assert.Equal(t, "bar archive", string(b))

	_, err = bs.Get(context.Background(), "authors/id/Z/ZZ/ZED/None-1.tar.gz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotExists))
}

func TestPutExclusive(t *testing.T) {
	bs := setupStore(t, afero.NewMemMapFs())
	ctx := context.Background()

	err := bs.Put(ctx, fooKey, strings.NewReader("other content"), storage.NoOverWrite)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrExists))

	rdr, err := bs.Get(ctx, fooKey)
	require.NoError(t, err)
	b, _ := io.ReadAll(rdr)
	_ = rdr.Close()
	assert.Equal(t, "foo archive", string(b), "an exclusive put never alters the stored archive")

	require.NoError(t, bs.Put(ctx, fooKey, strings.NewReader("replaced"), storage.OverWrite))
	rdr, err = bs.Get(ctx, fooKey)
	require.NoError(t, err)
	b, _ = io.ReadAll(rdr)
	_ = rdr.Close()
	assert.Equal(t, "replaced", string(b))
}

func TestInvalidKeys(t *testing.T) {
	bs := setupStore(t, afero.NewMemMapFs())
	ctx := context.Background()

	for _, key := range []string{"", "/", "../escape", nestedPutStageName + "/x", nestedPutStageName} {
		fixture := key
		t.Run(fixture, func(t *testing.T) {
			err := bs.Put(ctx, fixture, bytes.NewReader([]byte("x")), storage.OverWrite)
			require.Error(t, err)
			assert.True(t, errors.Is(err, status.ErrInvalidResource))
		})
	}
}

func TestKeys(t *testing.T) {
	bs := setupStore(t, afero.NewMemMapFs())
	ctx := context.Background()

	keys, err := bs.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{barKey, fooKey}, keys)

	keys, err = bs.KeysPrefix(ctx, "authors/id/J/")
	require.NoError(t, err)
	assert.Equal(t, []string{fooKey}, keys)

	keys, err = bs.KeysPrefix(ctx, "authors/id/Q/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestConcurrentExclusivePut(t *testing.T) {
	fs := afero.NewBasePathFs(afero.NewOsFs(), t.TempDir())
	bs := setupStore(t, fs)
	ctx := context.Background()

	const key = "authors/id/C/CO/CONC/Race-1.0.tar.gz"
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = bs.Put(ctx, key, strings.NewReader("same content"), storage.OverWrite)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	staged, err := afero.ReadDir(fs, nestedPutStageName)
	require.NoError(t, err)
	assert.Empty(t, staged, "staging area is cleaned up after puts")
	assert.Contains(t, bs.String(), "localfs@")
}

func TestClearStage(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = setupStore(t, fs)
	require.NoError(t, afero.WriteFile(fs, nestedPutStageName+"/leftover", []byte("x"), 0600))

	require.NoError(t, ClearStage(fs))
	staged, err := afero.ReadDir(fs, nestedPutStageName)
	require.NoError(t, err)
	assert.Empty(t, staged)
}
