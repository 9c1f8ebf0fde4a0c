// Copyright © 2018 One Concern

package vcs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/vcs/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registry = "modules/02packages.details.txt"

func initHistory(t testing.TB) *Repository {
	r, err := Initialize(filepath.Join(t.TempDir(), "stacks"))
	require.NoError(t, err)

	require.NoError(t, r.CreateInitialBranch("master"))
	require.NoError(t, r.WriteFile(registry, []byte("")))
	_, err = r.Commit(Orphan(true))
	require.NoError(t, err)
	return r
}

func TestInitialize(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "stacks")
	_, err := Initialize(dir)
	require.NoError(t, err)

	_, err = Initialize(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrAlreadyInitialized))

	_, err = Open(filepath.Join(t.TempDir(), "none"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotInitialized))

	r, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, r.Root())
}

func TestInitialBranchHasNoParent(t *testing.T) {
	r := initHistory(t)

	branch, err := r.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "master", branch)

	tip, err := r.Tip("master")
	require.NoError(t, err)
	parents, err := r.Parents(tip)
	require.NoError(t, err)
	assert.Empty(t, parents)

	err = r.CreateInitialBranch("master")
	assert.True(t, errors.Is(err, status.ErrBranchExists))

	_, err = r.Commit(Orphan(true))
	assert.True(t, errors.Is(err, status.ErrBranchExists), "orphan commits need a branch without history")
}

func TestForkDoesNotMoveSource(t *testing.T) {
	r := initHistory(t)
	masterTip, err := r.Tip("master")
	require.NoError(t, err)

	err = r.ForkBranch("nope", "dev")
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrBranchNotFound))

	require.NoError(t, r.ForkBranch("master", "dev"))
	devTip, err := r.Tip("dev")
	require.NoError(t, err)
	assert.Equal(t, masterTip, devTip)

	err = r.ForkBranch("master", "dev")
	assert.True(t, errors.Is(err, status.ErrBranchExists))

	require.NoError(t, r.Checkout("dev", false))
	require.NoError(t, r.WriteFile(registry, []byte("Foo 1.0 J/JE/JEFF/Foo-1.0.tar.gz\n")))
	commit, err := r.Commit(Username("jeff"), Message("register Foo"))
	require.NoError(t, err)

	after, err := r.Tip("master")
	require.NoError(t, err)
	assert.Equal(t, masterTip, after)

	devTip, err = r.Tip("dev")
	require.NoError(t, err)
	assert.Equal(t, commit, devTip)
	parents, err := r.Parents(devTip)
	require.NoError(t, err)
	assert.Equal(t, []string{masterTip}, parents)

	content, err := r.ReadFile("dev", registry)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Foo 1.0")
	content, err = r.ReadFile("master", registry)
	require.NoError(t, err)
	assert.Empty(t, content)

	branches, err := r.Branches()
	require.NoError(t, err)
	assert.Equal(t, []string{"dev", "master"}, branches)
}

func TestCheckout(t *testing.T) {
	r := initHistory(t)

	err := r.Checkout("missing", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrBranchNotFound))

	require.NoError(t, r.ForkBranch("master", "dev"))
	require.NoError(t, r.Checkout("dev", false))
	branch, err := r.CurrentBranch()
	require.NoError(t, err)
	assert.Equal(t, "dev", branch)
}

func TestOrphanCheckoutStartsEmpty(t *testing.T) {
	r := initHistory(t)

	require.NoError(t, r.Checkout("fresh", true))
	_, err := os.Stat(filepath.Join(r.Root(), filepath.FromSlash(registry)))
	assert.True(t, os.IsNotExist(err), "an orphan branch does not inherit the previous tree")

	dirty, err := r.Status("")
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, r.WriteFile("README", []byte("fresh")))
	commit, err := r.Commit(Orphan(true))
	require.NoError(t, err)
	parents, err := r.Parents(commit)
	require.NoError(t, err)
	assert.Empty(t, parents)

	_, err = r.ReadFile("fresh", registry)
	assert.True(t, os.IsNotExist(err))
}

func TestStatus(t *testing.T) {
	r := initHistory(t)

	dirty, err := r.Status("")
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(r.Root(), "modules", "extra.txt"), []byte("x"), 0600))
	dirty, err = r.Status("")
	require.NoError(t, err)
	assert.True(t, dirty)

	dirty, err = r.Status(registry)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, r.Add("modules/extra.txt"))
	dirty, err = r.Status("modules/extra.txt")
	require.NoError(t, err)
	assert.True(t, dirty)

	_, err = r.Commit()
	require.NoError(t, err)
	dirty, err = r.Status("modules/extra.txt")
	require.NoError(t, err)
	assert.False(t, dirty)

	_, err = r.Status("../outside")
	assert.True(t, errors.Is(err, status.ErrInvalidPath))
}

func TestReservedOperations(t *testing.T) {
	r := initHistory(t)

	_, err := r.Log("master")
	assert.True(t, errors.Is(err, status.ErrNotSupported))
	assert.True(t, errors.Is(r.Merge("dev", "master"), status.ErrNotSupported))
}

func TestDiscard(t *testing.T) {
	r := initHistory(t)

	require.NoError(t, r.WriteFile(registry, []byte("Foo::Bar  1.0  J/JE/JEFF/Foo-Bar-1.0.tar.gz\n")))
	dirty, err := r.Status("")
	require.NoError(t, err)
	require.True(t, dirty)

	require.NoError(t, r.Discard())

	dirty, err = r.Status("")
	require.NoError(t, err)
	assert.False(t, dirty)

	content, err := os.ReadFile(filepath.Join(r.Root(), registry))
	require.NoError(t, err)
	assert.Empty(t, content)
}
