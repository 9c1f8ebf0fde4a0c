package metadata

import (
	"context"
	"os"
	"sort"
	"testing"

	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/metadata/status"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	st := New(InMemory())
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testDistribution(path string, provides ...model.PackageSpec) model.Distribution {
	dist := model.Distribution{
		Path:   path,
		Source: model.LocalSource,
		Size:   42,
		Prerequisites: []model.Prerequisite{
			{PackageSpec: model.PackageSpec{Name: "strict", Version: "0"}, Phase: "runtime"},
		},
	}
	for _, spec := range provides {
		dist.Packages = append(dist.Packages, model.Package{PackageSpec: spec})
	}
	return dist
}

func spec(name, version string) model.PackageSpec {
	return model.PackageSpec{Name: name, Version: version}
}

func TestOnDisk(t *testing.T) {
	td, err := os.MkdirTemp("", "darkpan-meta")
	require.NoError(t, err)
	defer os.RemoveAll(td)

	ctx := context.Background()
	st := New(BaseDir(td))
	require.NoError(t, st.Initialize())
	require.NoError(t, st.Ping(ctx))
	require.NoError(t, st.CreateDistribution(ctx, testDistribution("X/XY/XYZ/Foo-1.0.tar.gz", spec("Foo", "1.0"))))
	require.NoError(t, st.Close())

	reopened := New(BaseDir(td))
	require.NoError(t, reopened.Initialize())
	defer reopened.Close()

	dist, err := reopened.GetDistribution(ctx, "X/XY/XYZ/Foo-1.0.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, int64(42), dist.Size)
}

func TestNotInitialized(t *testing.T) {
	st := New(InMemory())
	_, err := st.GetDistribution(context.Background(), "X/XY/XYZ/Foo-1.0.tar.gz")
	require.True(t, errors.Is(err, status.ErrNotInitialized))
}

func TestCreateDistribution(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	_, err := st.GetDistribution(ctx, "X/XY/XYZ/Foo-1.0.tar.gz")
	require.True(t, errors.Is(err, status.ErrNotFound))
	assert.Contains(t, err.Error(), "X/XY/XYZ/Foo-1.0.tar.gz")

	dist := testDistribution("X/XY/XYZ/Foo-1.0.tar.gz", spec("Foo", "1.0"), spec("Foo::Util", "0.3"))
	require.NoError(t, st.CreateDistribution(ctx, dist))

	got, err := st.GetDistribution(ctx, dist.Path)
	require.NoError(t, err)
	assert.Equal(t, dist.Path, got.Path)
	assert.Equal(t, model.LocalSource, got.Source)
	require.Len(t, got.Packages, 2)
	for _, pkg := range got.Packages {
		assert.Equal(t, dist.Path, pkg.Distribution)
	}
	require.Len(t, got.Prerequisites, 1)
	assert.Equal(t, "strict", got.Prerequisites[0].Name)

	// second creation at the same path is rejected and leaves the record untouched
	other := testDistribution("X/XY/XYZ/Foo-1.0.tar.gz", spec("Bar", "2.0"))
	err = st.CreateDistribution(ctx, other)
	require.True(t, errors.Is(err, status.ErrExists))

	got, err = st.GetDistribution(ctx, dist.Path)
	require.NoError(t, err)
	require.Len(t, got.Packages, 2)

	pkgs, err := st.PackagesByName(ctx, "Bar")
	require.NoError(t, err)
	assert.Empty(t, pkgs)

	require.True(t, errors.Is(st.CreateDistribution(ctx, model.Distribution{}), status.ErrNameRequired))
}

func TestLatestPackage(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateDistribution(ctx, testDistribution("A/AB/ABC/Foo-1.05.tar.gz", spec("Foo", "1.05"))))
	require.NoError(t, st.CreateDistribution(ctx, testDistribution("A/AB/ABC/Foo-1.5.tar.gz", spec("Foo", "1.5"))))
	require.NoError(t, st.CreateDistribution(ctx, testDistribution("X/XY/XYZ/Foo-1.10.tar.gz", spec("Foo", "1.10"), spec("Foo::Bar", "1.10"))))

	latest, err := st.LatestPackage(ctx, "Foo")
	require.NoError(t, err)
	assert.Equal(t, "1.5", latest.Version)
	assert.Equal(t, "A/AB/ABC/Foo-1.5.tar.gz", latest.Distribution)

	_, err = st.LatestPackage(ctx, "Foo::Baz")
	require.True(t, errors.Is(err, status.ErrNotFound))

	// "Foo" must not match "Foo::Bar"
	pkgs, err := st.PackagesByName(ctx, "Foo")
	require.NoError(t, err)
	assert.Len(t, pkgs, 3)

	names, err := st.ListPackageNames(ctx, "Foo")
	require.NoError(t, err)
	assert.Equal(t, []string{"Foo", "Foo::Bar"}, names)

	dists, err := st.ListDistributions(ctx)
	require.NoError(t, err)
	require.Len(t, dists, 3)
	assert.True(t, sort.SliceIsSorted(dists, func(i, j int) bool { return dists[i].Path < dists[j].Path }))
}

func TestStacks(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateStack(ctx, model.Stack{Name: "master", IsDefault: true}, ""))
	require.NoError(t, st.CreateStack(ctx, model.Stack{Name: "dev", Properties: map[string]string{" Description ": "dev stack", "empty": ""}}, "master"))

	err := st.CreateStack(ctx, model.Stack{Name: "dev"}, "")
	require.True(t, errors.Is(err, status.ErrExists))

	err = st.CreateStack(ctx, model.Stack{Name: "prod", IsDefault: true}, "")
	require.True(t, errors.Is(err, status.ErrDefaultStack))

	err = st.CreateStack(ctx, model.Stack{Name: "qa"}, "missing")
	require.True(t, errors.Is(err, status.ErrNotFound))
	_, err = st.GetStack(ctx, "qa")
	require.True(t, errors.Is(err, status.ErrNotFound), "a failed creation must leave nothing behind")

	dev, err := st.GetStack(ctx, "dev")
	require.NoError(t, err)
	assert.False(t, dev.IsDefault)
	assert.False(t, dev.CreatedAt.IsZero())
	assert.Equal(t, "dev stack", dev.Property("description"))
	assert.Len(t, dev.Properties, 1)

	dev, err = st.SetStackProperties(ctx, "dev", map[string]string{"description": "", "target_perl_version": "5.30"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"target_perl_version": "5.30"}, dev.Properties)

	defaults, err := st.DefaultStacks(ctx)
	require.NoError(t, err)
	require.Len(t, defaults, 1)
	assert.Equal(t, "master", defaults[0].Name)

	require.NoError(t, st.SetDefaultStack(ctx, "dev"))
	defaults, err = st.DefaultStacks(ctx)
	require.NoError(t, err)
	require.Len(t, defaults, 1)
	assert.Equal(t, "dev", defaults[0].Name)

	require.True(t, errors.Is(st.SetDefaultStack(ctx, "missing"), status.ErrNotFound))

	require.True(t, errors.Is(st.DeleteStack(ctx, "dev"), status.ErrDefaultStack))
	require.NoError(t, st.DeleteStack(ctx, "master"))

	stacks, err := st.ListStacks(ctx)
	require.NoError(t, err)
	require.Len(t, stacks, 1)
	assert.Equal(t, "dev", stacks[0].Name)
}

func TestRegistrations(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateStack(ctx, model.Stack{Name: "master", IsDefault: true}, ""))
	d1 := testDistribution("A/AB/ABC/Foo-1.0.tar.gz", spec("Foo", "1.0"), spec("Foo::Util", "1.0"))
	d2 := testDistribution("A/AB/ABC/Foo-2.0.tar.gz", spec("Foo", "2.0"))
	require.NoError(t, st.CreateDistribution(ctx, d1))
	require.NoError(t, st.CreateDistribution(ctx, d2))
	d1, _ = st.GetDistribution(ctx, d1.Path)
	d2, _ = st.GetDistribution(ctx, d2.Path)

	superseded, err := st.Register(ctx, "master", d1.Packages...)
	require.NoError(t, err)
	assert.Empty(t, superseded)

	// fork: the new stack starts with the registrations of its parent
	require.NoError(t, st.CreateStack(ctx, model.Stack{Name: "dev"}, "master"))

	superseded, err = st.Register(ctx, "dev", d2.Packages...)
	require.NoError(t, err)
	require.Len(t, superseded, 1)
	assert.Equal(t, "1.0", superseded[0].Package.Version)

	reg, err := st.Registration(ctx, "dev", "Foo")
	require.NoError(t, err)
	assert.Equal(t, "2.0", reg.Package.Version)
	assert.Equal(t, "dev", reg.Stack)

	// the parent is unaffected
	reg, err = st.Registration(ctx, "master", "Foo")
	require.NoError(t, err)
	assert.Equal(t, "1.0", reg.Package.Version)

	regs, err := st.Registrations(ctx, "dev")
	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, "Foo", regs[0].Package.Name)
	assert.Equal(t, "Foo::Util", regs[1].Package.Name)

	_, err = st.Registration(ctx, "dev", "Bar")
	require.True(t, errors.Is(err, status.ErrNotFound))
	_, err = st.Registrations(ctx, "missing")
	require.True(t, errors.Is(err, status.ErrNotFound))

	_, err = st.Register(ctx, "dev", model.Package{PackageSpec: spec("Ghost", "1.0"), Distribution: "G/GH/GHOST/Ghost-1.0.tar.gz"})
	require.True(t, errors.Is(err, status.ErrNotFound))

	removed, err := st.Unregister(ctx, "dev", "Foo::Util")
	require.NoError(t, err)
	assert.Equal(t, "1.0", removed.Package.Version)
	_, err = st.Unregister(ctx, "dev", "Foo::Util")
	require.True(t, errors.Is(err, status.ErrNotFound))

	// deleting a distribution drops its registrations everywhere
	require.NoError(t, st.DeleteDistribution(ctx, d1.Path))
	_, err = st.Registration(ctx, "master", "Foo")
	require.True(t, errors.Is(err, status.ErrNotFound))
	pkgs, err := st.PackagesByName(ctx, "Foo")
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "2.0", pkgs[0].Version)

	require.True(t, errors.Is(st.DeleteDistribution(ctx, d1.Path), status.ErrNotFound))
}

func TestRegisterDuplicateNames(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	require.NoError(t, st.CreateStack(ctx, model.Stack{Name: "master", IsDefault: true}, ""))
	dist := testDistribution("A/AB/ABC/Foo-1.1.tar.gz", spec("Foo", "1.0"), spec("Foo::Util", "1.0"), spec("Foo", "1.1"))
	require.NoError(t, st.CreateDistribution(ctx, dist))
	for i := range dist.Packages {
		dist.Packages[i].Distribution = dist.Path
	}

	superseded, err := st.Register(ctx, "master", dist.Packages...)
	require.NoError(t, err)
	assert.Empty(t, superseded, "a package listed twice does not supersede itself")

	reg, err := st.Registration(ctx, "master", "Foo")
	require.NoError(t, err)
	assert.Equal(t, "1.1", reg.Package.Version)

	regs, err := st.Registrations(ctx, "master")
	require.NoError(t, err)
	assert.Len(t, regs, 2)
}
