// Copyright © 2018 One Concern

package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oneconcern/darkpan/pkg/config"
	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func partialAdd(t *testing.T, tr *testRepo, name, content string) model.Distribution {
	tr.archives.setFailure(fmt.Errorf("disk full"))
	defer tr.archives.setFailure(nil)

	dist, err := tr.Add(context.Background(), tr.archive(t, name, content), "")
	require.Error(t, err)
	require.True(t, errors.Is(err, status.ErrPartialIngestFailure))
	return dist
}

func TestRecoverPlacesArchives(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	foo := partialAdd(t, tr, "Foo-1.0.tar.gz", "foo")
	bar := partialAdd(t, tr, "Bar-1.0.tar.gz", "bar")

	results, err := tr.Recover(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.False(t, res.RolledBack)
	}

	assert.Equal(t, "foo", tr.stored(t, foo.Path))
	assert.Equal(t, "bar", tr.stored(t, bar.Path))

	markers, err := tr.Markers()
	require.NoError(t, err)
	assert.Empty(t, markers)

	// nothing left to do
	results, err = tr.Recover(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRecoverRollback(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	foo := partialAdd(t, tr, "Foo-1.0.tar.gz", "foo")

	results, err := tr.Recover(ctx, Rollback())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].RolledBack)

	_, found, err := tr.GetDistribution(ctx, foo.Path)
	require.NoError(t, err)
	assert.False(t, found)

	// the path is free again
	dist, err := tr.Add(ctx, tr.archive(t, "Foo-1.0.tar.gz", "foo"), "")
	require.NoError(t, err)
	assert.Equal(t, foo.Path, dist.Path)
}

func TestRecoverAfterInterruptedPlacement(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	foo := partialAdd(t, tr, "Foo-1.0.tar.gz", "foo")

	// the archive made it to the store, but the marker stayed
	require.NoError(t, tr.archives.Put(ctx, model.ArchiveKey(foo.Path), strings.NewReader("foo"), true))

	results, err := tr.Recover(ctx, Rollback())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.False(t, results[0].RolledBack, "an archive in place is never orphaned")

	_, found, err := tr.GetDistribution(ctx, foo.Path)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRecoverKeepsUnrecoverableMarkers(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	foo := partialAdd(t, tr, "Foo-1.0.tar.gz", "foo")

	// the staged archive changed since it was recorded
	markers, err := tr.Markers()
	require.NoError(t, err)
	require.Len(t, markers, 1)
	require.NoError(t, os.WriteFile(markers[0].Archive, []byte("tampered"), 0600))

	results, err := tr.Recover(ctx)
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.True(t, errors.Is(results[0].Err, status.ErrConsistencyViolation))

	has, err := tr.archives.Has(ctx, model.ArchiveKey(foo.Path))
	require.NoError(t, err)
	assert.False(t, has)

	markers, err = tr.Markers()
	require.NoError(t, err)
	assert.Len(t, markers, 1)
}

func TestRecoverDropsStaleMarkers(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)

	_, err := tr.writeMarker("J/JE/JEFF/Never-1.0.tar.gz", filepath.Join(tr.files, "Never-1.0.tar.gz"))
	require.NoError(t, err)

	results, err := tr.Recover(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)

	entries, err := os.ReadDir(filepath.Join(tr.Root(), config.Dir, recoveryDir))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRegisterRequiresStoredArchive(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	foo := partialAdd(t, tr, "Foo-1.0.tar.gz", "foo")

	_, err := tr.Register(ctx, DefaultStack(), foo.Path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrInvalidInput))
	assert.Contains(t, err.Error(), foo.Path)

	regs, err := tr.Registrations(ctx, DefaultStack())
	require.NoError(t, err)
	assert.Empty(t, regs)

	_, err = tr.Recover(ctx)
	require.NoError(t, err)
	_, err = tr.Register(ctx, DefaultStack(), foo.Path)
	require.NoError(t, err)
}

func TestRecoverRollbackUnregisters(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	foo := partialAdd(t, tr, "Foo-1.0.tar.gz", "foo")
	_, err := tr.CreateStack(ctx, "dev", nil)
	require.NoError(t, err)

	// registrations left by a version which did not check the archive store
	for _, stack := range []string{model.DefaultStackName, "dev"} {
		_, err = tr.meta.Register(ctx, stack, foo.Packages...)
		require.NoError(t, err)
		require.NoError(t, tr.commitRegistry(ctx, stack, "register "+foo.Path, false))
	}
	tip, err := tr.StackTip(ctx, DefaultStack())
	require.NoError(t, err)

	// a failed commit leaves everything in place
	history := tr.history
	tr.history = readOnlyHistory{History: history}
	results, err := tr.Recover(ctx, Rollback())
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.False(t, results[0].RolledBack)

	_, found, err := tr.GetDistribution(ctx, foo.Path)
	require.NoError(t, err)
	assert.True(t, found)
	for _, ref := range []StackRef{DefaultStack(), ByName("dev")} {
		regs, err := tr.Registrations(ctx, ref)
		require.NoError(t, err)
		assert.Len(t, regs, 1, ref.String())
	}
	markers, err := tr.Markers()
	require.NoError(t, err)
	assert.Len(t, markers, 1)

	tr.history = history
	results, err = tr.Recover(ctx, Rollback())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].RolledBack)

	for _, ref := range []StackRef{DefaultStack(), ByName("dev")} {
		regs, err := tr.Registrations(ctx, ref)
		require.NoError(t, err)
		assert.Empty(t, regs, ref.String())

		entries, err := tr.StackRegistry(ctx, ref)
		require.NoError(t, err)
		assert.Empty(t, entries, "the committed registry follows the registrations of %s", ref)
	}
	after, err := tr.StackTip(ctx, DefaultStack())
	require.NoError(t, err)
	assert.NotEqual(t, tip, after)
}

func TestRecoverWithoutOriginalFile(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)
	foo := partialAdd(t, tr, "Foo-1.0.tar.gz", "foo")

	markers, err := tr.Markers()
	require.NoError(t, err)
	require.Len(t, markers, 1)
	staging := filepath.Join(tr.Root(), config.Dir, tmpDir) + string(filepath.Separator)
	assert.True(t, strings.HasPrefix(markers[0].Archive, staging), markers[0].Archive)

	// the file given to Add is gone
	require.NoError(t, os.Remove(filepath.Join(tr.files, "Foo-1.0.tar.gz")))

	results, err := tr.Recover(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "foo", tr.stored(t, foo.Path))

	staged, err := os.ReadDir(filepath.Join(tr.Root(), config.Dir, tmpDir))
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestAddLeavesNothingStaged(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)

	_, err := tr.Add(ctx, tr.archive(t, "Foo-1.0.tar.gz", "foo"), "")
	require.NoError(t, err)
	_, err = tr.Add(ctx, tr.archive(t, "Foo-1.0.tar.gz", "foo again"), "")
	require.Error(t, err)
	tr.extractor.err = fmt.Errorf("corrupted archive")
	_, err = tr.Add(ctx, tr.archive(t, "Bar-1.0.tar.gz", "bar"), "")
	require.Error(t, err)

	staged, err := os.ReadDir(filepath.Join(tr.Root(), config.Dir, tmpDir))
	require.NoError(t, err)
	assert.Empty(t, staged)
}
