// Copyright © 2018 One Concern

package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/oneconcern/darkpan/pkg/config"
	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)

	stack, err := tr.GetDefaultStack(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultStackName, stack.Name)
	assert.True(t, stack.IsDefault)

	stacks, err := tr.ListStacks(ctx)
	require.NoError(t, err)
	require.Len(t, stacks, 1)

	entries, err := tr.StackRegistry(ctx, DefaultStack())
	require.NoError(t, err)
	assert.Empty(t, entries)

	tip, err := tr.StackTip(ctx, DefaultStack())
	require.NoError(t, err)
	assert.NotEmpty(t, tip)

	_, err = os.Stat(config.File(tr.Root()))
	require.NoError(t, err)

	_, err = Init(ctx, tr.Root())
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrAlreadyInitialized))
}

func TestInitWithConfiguredDefaultStack(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.DefaultStack = "Production"

	tr := newTestRepo(t, WithConfig(cfg))
	stack, err := tr.GetDefaultStack(ctx)
	require.NoError(t, err)
	assert.Equal(t, "production", stack.Name)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	_, err := Open(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotInitialized))

	tr := newTestRepo(t)
	dist, err := tr.Add(ctx, tr.archive(t, "Foo-1.0.tar.gz", "foo"), "")
	require.NoError(t, err)
	root := tr.Root()
	require.NoError(t, tr.Close())

	r, err := Open(root, WithExtractor(tr.extractor), WithFetcher(tr.fetcher), WithIndexCache(tr.index))
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	found, ok, err := r.GetDistribution(ctx, dist.Path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, dist.Path, found.Path)
	assert.Equal(t, "JEFF", r.Config().DefaultAuthor)
}

func TestGetStack(t *testing.T) {
	ctx := context.Background()
	tr := newTestRepo(t)

	created, err := tr.CreateStack(ctx, "Dev", map[string]string{"Description": "development"})
	require.NoError(t, err)
	assert.Equal(t, "dev", created.Name)
	assert.Equal(t, "development", created.Property("description"))

	for _, toPin := range []struct {
		Name  string
		Ref   StackRef
		Stack string
	}{
		{Name: "by name", Ref: ByName("dev"), Stack: "dev"},
		{Name: "by name, other case", Ref: ByName("DEV"), Stack: "dev"},
		{Name: "by name, blanks", Ref: ByName("  Dev "), Stack: "dev"},
		{Name: "default", Ref: DefaultStack(), Stack: model.DefaultStackName},
		{Name: "empty name", Ref: ByName(""), Stack: model.DefaultStackName},
		{Name: "resolved", Ref: Resolved(model.Stack{Name: "unknown"}), Stack: "unknown"},
	} {
		fixture := toPin
		t.Run(fixture.Name, func(t *testing.T) {
			stack, found, err := tr.GetStack(ctx, fixture.Ref)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, fixture.Stack, stack.Name)
		})
	}

	_, _, err = tr.GetStack(ctx, ByName("missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrNotFound))
	assert.Contains(t, err.Error(), "missing")

	_, found, err := tr.GetStack(ctx, ByName("missing"), AllowMissing())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDefaultStackConsistency(t *testing.T) {
	ctx := context.Background()

	for _, toPin := range []struct {
		Name     string
		Defaults []model.Stack
	}{
		{Name: "no default"},
		{Name: "two defaults", Defaults: []model.Stack{{Name: "master", IsDefault: true}, {Name: "dev", IsDefault: true}}},
	} {
		fixture := toPin
		t.Run(fixture.Name, func(t *testing.T) {
			tr := newTestRepo(t)
			tr.meta = brokenDefaults{MetadataStore: tr.meta, defaults: fixture.Defaults}

			_, err := tr.GetDefaultStack(ctx)
			require.Error(t, err)
			assert.True(t, errors.Is(err, status.ErrConsistencyViolation))
			assert.False(t, errors.Is(err, status.ErrNotFound))

			_, _, err = tr.GetStack(ctx, DefaultStack(), AllowMissing())
			require.Error(t, err)
			assert.True(t, errors.Is(err, status.ErrConsistencyViolation))

			_, err = tr.CreateStack(ctx, "dev", nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, status.ErrConsistencyViolation))
		})
	}
}

func TestCloseReleasesStores(t *testing.T) {
	tr := newTestRepo(t)
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	_, err := os.Stat(filepath.Join(tr.Root(), config.Dir, dbDir))
	assert.NoError(t, err)
}
