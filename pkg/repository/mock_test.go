// Copyright © 2018 One Concern

package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/oneconcern/darkpan/pkg/config"
	"github.com/oneconcern/darkpan/pkg/extractor"
	fetchstatus "github.com/oneconcern/darkpan/pkg/fetch/status"
	"github.com/oneconcern/darkpan/pkg/index"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/storage"
	"github.com/stretchr/testify/require"
)

// mockExtractor provides the main package inferred from the archive name, unless told otherwise
type mockExtractor struct {
	provides map[string][]model.PackageSpec
	requires []model.Prerequisite
	err      error
}

func (m *mockExtractor) Provides(_ context.Context, archive string) ([]model.PackageSpec, error) {
	if m.err != nil {
		return nil, m.err
	}
	if specs, ok := m.provides[filepath.Base(archive)]; ok {
		return specs, nil
	}
	main, ok := model.MainPackage(filepath.Base(archive))
	if !ok {
		return nil, nil
	}
	return []model.PackageSpec{main}, nil
}

func (m *mockExtractor) Requires(_ context.Context, _ string) ([]model.Prerequisite, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.requires, nil
}

// analyzingExtractor reads an archive in one pass, and fails the separate lookups
type analyzingExtractor struct {
	*mockExtractor
	passes int
}

func (a *analyzingExtractor) Extract(ctx context.Context, archive string) (extractor.Result, error) {
	a.passes++
	provides, err := a.mockExtractor.Provides(ctx, archive)
	if err != nil {
		return extractor.Result{}, err
	}
	requires, err := a.mockExtractor.Requires(ctx, archive)
	if err != nil {
		return extractor.Result{}, err
	}
	return extractor.Result{Provides: provides, Requires: requires}, nil
}

func (a *analyzingExtractor) Provides(context.Context, string) ([]model.PackageSpec, error) {
	return nil, fmt.Errorf("provides must be read with Extract")
}

func (a *analyzingExtractor) Requires(context.Context, string) ([]model.Prerequisite, error) {
	return nil, fmt.Errorf("requires must be read with Extract")
}

// mockFetcher serves URLs from local files
type mockFetcher struct {
	mu    sync.Mutex
	files map[string]string
	calls int
}

func (m *mockFetcher) Fetch(ctx context.Context, from, to string) error {
	rdr, err := m.Open(ctx, from)
	if err != nil {
		return err
	}
	defer func() { _ = rdr.Close() }()

	if err = os.MkdirAll(filepath.Dir(to), 0700); err != nil {
		return err
	}
	f, err := os.Create(to)
	if err != nil {
		return err
	}
	if _, err = io.Copy(f, rdr); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (m *mockFetcher) Open(_ context.Context, from string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	src, ok := m.files[from]
	if !ok {
		return nil, fetchstatus.ErrNotFound.WrapMessage("%s", from)
	}
	return os.Open(src)
}

func (m *mockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockIndex locates packages from a fixed list of entries
type mockIndex struct {
	entries     map[string]index.Entry
	invalidated int
}

func (m *mockIndex) Locate(_ context.Context, name, version string) (index.Entry, bool, error) {
	e, ok := m.entries[name]
	if !ok || version != "" && !model.VersionAtLeast(e.Version, version) {
		return index.Entry{}, false, nil
	}
	return e, true, nil
}

func (m *mockIndex) Search(_ context.Context, prefix string) ([]index.Entry, error) {
	var res []index.Entry
	for name, e := range m.entries {
		if strings.HasPrefix(name, prefix) {
			res = append(res, e)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

func (m *mockIndex) Invalidate() error {
	m.invalidated++
	return nil
}

// failingStore fails puts while failPut is set
type failingStore struct {
	storage.Store
	mu      sync.Mutex
	failPut error
}

func (f *failingStore) Put(ctx context.Context, key string, source io.Reader, exclusive bool) error {
	f.mu.Lock()
	failure := f.failPut
	f.mu.Unlock()
	if failure != nil {
		return failure
	}
	return f.Store.Put(ctx, key, source, exclusive)
}

func (f *failingStore) setFailure(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPut = err
}

// mockHistory overrides the fork of branches of a real history
type mockHistory struct {
	History
	forkErr error
	forks   int
}

func (m *mockHistory) ForkBranch(from, to string) error {
	m.forks++
	if m.forkErr != nil {
		return m.forkErr
	}
	return m.History.ForkBranch(from, to)
}

// brokenDefaults reports some fixed default stacks
type brokenDefaults struct {
	MetadataStore
	defaults []model.Stack
}

func (b brokenDefaults) DefaultStacks(_ context.Context) ([]model.Stack, error) {
	return b.defaults, nil
}

type testRepo struct {
	*Repository
	extractor *mockExtractor
	fetcher   *mockFetcher
	index     *mockIndex
	archives  *failingStore
	files     string
}

func newTestRepo(t testing.TB, opts ...Option) *testRepo {
	root := t.TempDir()
	st := &failingStore{}
	var err error
	st.Store, err = localArchiveStore(root)
	require.NoError(t, err)

	tr := &testRepo{
		extractor: &mockExtractor{},
		fetcher:   &mockFetcher{files: make(map[string]string)},
		index:     &mockIndex{entries: make(map[string]index.Entry)},
		archives:  st,
		files:     t.TempDir(),
	}
	cfg := config.Default()
	cfg.DefaultAuthor = "JEFF"

	all := append([]Option{
		WithConfig(cfg),
		WithExtractor(tr.extractor),
		WithFetcher(tr.fetcher),
		WithIndexCache(tr.index),
		WithArchiveStore(tr.archives),
		WithUsername("tester"),
	}, opts...)
	tr.Repository, err = Init(context.Background(), root, all...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tr.Close()
	})
	return tr
}

// archive writes a distribution archive in the test files directory
func (tr *testRepo) archive(t testing.TB, name, content string) string {
	pth := filepath.Join(tr.files, name)
	require.NoError(t, os.WriteFile(pth, []byte(content), 0600))
	return pth
}

func (tr *testRepo) stored(t testing.TB, distPath string) string {
	rdr, err := tr.archives.Get(context.Background(), model.ArchiveKey(distPath))
	require.NoError(t, err)
	defer func() { _ = rdr.Close() }()
	content, err := io.ReadAll(rdr)
	require.NoError(t, err)
	return string(content)
}
