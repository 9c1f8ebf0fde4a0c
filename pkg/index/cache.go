// Copyright © 2018 One Concern

// Package index resolves package names to the distributions providing them on upstream repositories.
//
// The package indexes (modules/02packages.details.txt.gz) of the configured sources are downloaded
// into a local cache directory, then loaded in memory. The in-memory index is kept until Invalidate is called.
package index

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	iradix "github.com/hashicorp/go-immutable-radix/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/fetch"
	fetchstatus "github.com/oneconcern/darkpan/pkg/fetch/status"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const (
	// IndexFile is the path of the package index in a repository
	IndexFile = "modules/02packages.details.txt"

	defaultLRUSize     = 1024
	defaultConcurrency = 4
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Option for the index cache
type Option func(*Cache)

// Sources of the package indexes, as base URLs (http, https, file) or local directories.
//
// When several sources provide a package, the highest version wins. Ties are won by the first source.
func Sources(sources ...string) Option {
	return func(c *Cache) {
		c.sources = sources
	}
}

// CacheDir is where downloaded indexes are kept
func CacheDir(dir string) Option {
	return func(c *Cache) {
		c.cacheDir = dir
	}
}

// Logger for the index cache
func Logger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.l = l
		}
	}
}

// Concurrency sets how many sources are loaded in parallel
func Concurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// Cache is a read-mostly index of packages
type Cache struct {
	mu          sync.RWMutex
	sources     []string
	cacheDir    string
	concurrency int
	fetcher     fetch.Fetcher
	current     *generation
	l           *zap.Logger
}

// generation is a loaded index, with the lookups memoized on it.
// Invalidate drops a generation as a whole, so no lookup on a dropped index is remembered.
type generation struct {
	tree    *iradix.Tree[[]Entry]
	located *lru.Cache[string, Entry]
}

// New index cache, fetching indexes with the given fetcher
func New(fetcher fetch.Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher:     fetcher,
		cacheDir:    filepath.Join(".darkpan", "cache"),
		concurrency: defaultConcurrency,
		l:           zap.NewNop(),
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

// Sources of this cache
func (c *Cache) Sources() []string {
	return c.sources
}

// Locate the distribution providing a package.
//
// When version is not empty, the indexed version must be at least that version.
// The boolean result is false when no source provides a suitable version.
func (c *Cache) Locate(ctx context.Context, name, version string) (Entry, bool, error) {
	gen, err := c.load(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	key := name + "@" + version
	if e, ok := gen.located.Get(key); ok {
		return e, true, nil
	}

	candidates, ok := gen.tree.Get([]byte(name))
	if !ok {
		return Entry{}, false, nil
	}

	var (
		best  Entry
		found bool
	)
	for _, e := range candidates {
		if version != "" && !model.VersionAtLeast(e.Version, version) {
			continue
		}
		if !found || model.CompareVersions(e.Version, best.Version) > 0 {
			best, found = e, true
		}
	}
	if found {
		gen.located.Add(key, best)
	}
	return best, found, nil
}

// Search lists the entries of all packages whose name starts with prefix, sorted by name
func (c *Cache) Search(ctx context.Context, prefix string) ([]Entry, error) {
	gen, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	var res []Entry
	gen.tree.Root().WalkPrefix([]byte(prefix), func(_ []byte, entries []Entry) bool {
		res = append(res, entries...)
		return false
	})
	return res, nil
}

// Invalidate drops the in-memory index and the downloaded index files.
// The next lookup reloads the indexes from their sources.
func (c *Cache) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = nil
	for _, source := range c.sources {
		if err := os.RemoveAll(c.sourceDir(source)); err != nil {
			return fmt.Errorf("removing cached index of %s: %w", source, err)
		}
	}
	c.l.Info("invalidated index cache")
	return nil
}

func (c *Cache) load(ctx context.Context) (*generation, error) {
	c.mu.RLock()
	gen := c.current
	c.mu.RUnlock()
	if gen != nil {
		return gen, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil {
		return c.current, nil
	}

	type loaded struct {
		idx     int
		entries []Entry
		err     error
	}
	p := pool.NewWithResults[loaded]().WithMaxGoroutines(c.concurrency)
	for i, source := range c.sources {
		i, source := i, source
		p.Go(func() loaded {
			entries, err := c.loadSource(ctx, source)
			return loaded{idx: i, entries: entries, err: err}
		})
	}
	results := p.Wait()

	bySource := make([][]Entry, len(c.sources))
	for _, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("loading index of %s: %w", c.sources[r.idx], r.err)
		}
		bySource[r.idx] = r.entries
	}

	txn := iradix.New[[]Entry]().Txn()
	count := 0
	for _, entries := range bySource {
		for _, e := range entries {
			existing, _ := txn.Get([]byte(e.Name))
			txn.Insert([]byte(e.Name), append(existing[:len(existing):len(existing)], e))
			count++
		}
	}
	located, err := lru.New[string, Entry](defaultLRUSize)
	if err != nil {
		return nil, err
	}
	c.current = &generation{tree: txn.Commit(), located: located}
	c.l.Info("loaded package indexes", zap.Int("sources", len(c.sources)), zap.Int("entries", count))
	return c.current, nil
}

func (c *Cache) sourceDir(source string) string {
	return filepath.Join(c.cacheDir, strings.Trim(unsafeChars.ReplaceAllString(source, "_"), "_"))
}

func sourceURL(source string) string {
	if strings.Contains(source, "://") {
		return strings.TrimRight(source, "/")
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = source
	}
	return "file://" + filepath.ToSlash(abs)
}

// loadSource reads the index of a source, downloading it into the cache first if needed
func (c *Cache) loadSource(ctx context.Context, source string) ([]Entry, error) {
	base := sourceURL(source)
	dir := c.sourceDir(source)

	compressed := filepath.Join(dir, filepath.Base(IndexFile)+".gz")
	plain := filepath.Join(dir, filepath.Base(IndexFile))

	local, gz, err := c.cached(ctx, base, compressed, plain)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(local)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	var rdr io.Reader = file
	if gz {
		zr, err := gzip.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", local, err)
		}
		defer func() {
			_ = zr.Close()
		}()
		rdr = zr
	}

	_, entries, err := Parse(rdr, base)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", local, err)
	}
	c.l.Debug("loaded index", zap.String("source", source), zap.Int("entries", len(entries)))
	return entries, nil
}

func (c *Cache) cached(ctx context.Context, base, compressed, plain string) (string, bool, error) {
	if _, err := os.Stat(compressed); err == nil {
		return compressed, true, nil
	}
	if _, err := os.Stat(plain); err == nil {
		return plain, false, nil
	}

	err := c.fetcher.Fetch(ctx, base+"/"+IndexFile+".gz", compressed)
	if err == nil {
		return compressed, true, nil
	}
	if !errors.Is(err, fetchstatus.ErrNotFound) {
		return "", false, err
	}

	// repositories serving an uncompressed index, such as stacks
	if err = c.fetcher.Fetch(ctx, base+"/"+IndexFile, plain); err != nil {
		return "", false, err
	}
	return plain, false, nil
}
