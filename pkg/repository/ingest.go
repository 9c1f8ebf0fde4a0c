// Copyright © 2018 One Concern

package repository

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/extractor"
	fetchstatus "github.com/oneconcern/darkpan/pkg/fetch/status"
	metastatus "github.com/oneconcern/darkpan/pkg/metadata/status"
	"github.com/oneconcern/darkpan/pkg/metrics"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	"github.com/oneconcern/darkpan/pkg/storage"
	storagestatus "github.com/oneconcern/darkpan/pkg/storage/status"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
)

// Add ingests a local archive file published by author.
//
// The distribution is recorded in metadata first, then its archive is copied into the archive store.
// When the copy fails, the distribution remains recorded and status.ErrPartialIngestFailure is returned:
// Recover completes the ingestion later.
//
// An empty author falls back to the default author of the repository.
func (r *Repository) Add(ctx context.Context, file, author string, opts ...AddOption) (model.Distribution, error) {
	o := addOptions{source: model.LocalSource}
	for _, apply := range opts {
		apply(&o)
	}

	unlock, l, err := r.lock(ctx, "add", zap.String("archive", file))
	if err != nil {
		return model.Distribution{}, err
	}
	defer unlock()

	return r.add(ctx, l, file, author, o)
}

func (r *Repository) add(ctx context.Context, l *zap.Logger, file, author string, o addOptions) (model.Distribution, error) {
	start := time.Now()
	dist, err := r.ingest(ctx, l, file, author, o)
	outcome := metrics.Outcome(err)
	if errors.Is(err, status.ErrPartialIngestFailure) {
		outcome = "partial"
		metrics.Inc(metrics.PartialIngests)
	}
	metrics.Since(start, metrics.Timing, map[string]string{
		metrics.TagOperation: "add",
		metrics.TagOutcome:   outcome,
	})
	if err != nil {
		l.Error("could not add distribution", zap.String("path", dist.Path), zap.Error(err))
		return dist, err
	}
	metrics.Inc(metrics.Ingested)
	metrics.Int64(metrics.IngestedBytes, dist.Size)
	l.Info("added distribution",
		zap.String("path", dist.Path),
		zap.String("source", dist.Source),
		zap.Int("packages", len(dist.Packages)),
	)

	if o.stack != "" {
		if _, err = r.register(ctx, l, ByName(o.stack), dist); err != nil {
			return dist, err
		}
	}
	return dist, nil
}

// ingest runs the steps of an ingestion, in an order that keeps the repository recoverable:
// nothing is written to the archive store before the metadata, and the archive is placed last.
//
// The archive is analyzed and placed from a copy staged in the repository, which outlives a partial
// ingestion so that Recover does not depend on the file of the caller.
func (r *Repository) ingest(ctx context.Context, l *zap.Logger, file, author string, o addOptions) (model.Distribution, error) {
	if err := checkReadable(file); err != nil {
		return model.Distribution{}, err
	}

	if author == "" {
		author = r.cfg.DefaultAuthor
	}
	if author == "" {
		return model.Distribution{}, status.ErrInvalidInput.WrapMessage("no author for archive %q", file)
	}
	distPath, err := model.DistributionPath(author, filepath.Base(file))
	if err != nil {
		return model.Distribution{}, status.ErrInvalidInput.WrapMessage("archive %q", file).Wrap(err)
	}

	if _, found, err := r.GetDistribution(ctx, distPath); err != nil {
		return model.Distribution{}, err
	} else if found {
		return model.Distribution{}, status.ErrConflict.WrapMessage("distribution %q exists already", distPath)
	}

	staged, cleanup, err := r.stage(file)
	if err != nil {
		return model.Distribution{}, status.ErrInvalidInput.WrapMessage("archive %q could not be staged", file).Wrap(err)
	}
	keepStaged := false
	defer func() {
		if !keepStaged {
			cleanup()
		}
	}()

	identity, err := r.fingerprints.Process(staged)
	if err != nil {
		return model.Distribution{}, status.ErrInvalidInput.WrapMessage("archive %q", file).Wrap(err)
	}

	provides, requires, err := r.extract(ctx, staged)
	if err != nil {
		return model.Distribution{}, status.ErrInvalidInput.WrapMessage("archive %q", file).Wrap(err)
	}

	dist := model.Distribution{
		Path:          distPath,
		Source:        o.source,
		Packages:      make([]model.Package, 0, len(provides)),
		Prerequisites: requires,
	}
	identity.Apply(&dist)
	for _, spec := range provides {
		dist.Packages = append(dist.Packages, model.Package{PackageSpec: spec, Distribution: distPath})
	}

	if err = r.meta.CreateDistribution(ctx, dist); err != nil {
		if errors.Is(err, metastatus.ErrExists) {
			return model.Distribution{}, status.ErrConflict.WrapMessage("distribution %q exists already", distPath).Wrap(err)
		}
		return model.Distribution{}, fmt.Errorf("recording distribution %q: %w", distPath, err)
	}

	// from now on, the distribution exists: a crash leaves a marker behind
	marker, err := r.writeMarker(dist.Path, staged)
	if err != nil {
		if rerr := r.meta.DeleteDistribution(ctx, dist.Path); rerr != nil {
			l.Error("could not roll back distribution", zap.String("path", dist.Path), zap.Error(rerr))
			keepStaged = true
			return dist, status.ErrPartialIngestFailure.
				WrapMessage("distribution %q recorded without its archive, and without recovery marker", dist.Path).Wrap(err)
		}
		return model.Distribution{}, fmt.Errorf("writing recovery marker for %q: %w", dist.Path, err)
	}

	if err = r.place(ctx, staged, dist); err != nil {
		keepStaged = true
		l.Warn("archive not placed", zap.String("path", dist.Path), zap.String("marker", marker), zap.Error(err))
		return dist, status.ErrPartialIngestFailure.
			WrapMessage("distribution %q is recorded but its archive could not be stored (recovery marker %s)", dist.Path, marker).
			Wrap(err)
	}

	if err = os.Remove(marker); err != nil {
		l.Warn("could not remove recovery marker", zap.String("marker", marker), zap.Error(err))
	}
	return dist, nil
}

// stage copies an archive into the temporary area of the repository, unless it is there already.
//
// The returned function removes the staged copy.
func (r *Repository) stage(file string) (string, func(), error) {
	area := filepath.Join(r.internal, tmpDir)
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", nil, err
	}
	if strings.HasPrefix(abs, area+string(filepath.Separator)) {
		return abs, func() {}, nil
	}

	dir := filepath.Join(area, ksuid.New().String())
	cleanup := func() {
		_ = os.RemoveAll(dir)
	}
	if err = os.MkdirAll(dir, 0700); err != nil {
		return "", nil, err
	}
	staged := filepath.Join(dir, filepath.Base(abs))
	if err = copyFile(abs, staged); err != nil {
		cleanup()
		return "", nil, err
	}
	return staged, cleanup, nil
}

func copyFile(from, to string) error {
	src, err := os.Open(from)
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()
	dst, err := os.OpenFile(to, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err = io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func checkReadable(file string) error {
	fi, err := os.Stat(file)
	if err != nil {
		return status.ErrInvalidInput.WrapMessage("archive %q", file).Wrap(err)
	}
	if !fi.Mode().IsRegular() {
		return status.ErrInvalidInput.WrapMessage("archive %q is not a regular file", file)
	}
	f, err := os.Open(file)
	if err != nil {
		return status.ErrInvalidInput.WrapMessage("archive %q is not readable", file).Wrap(err)
	}
	return f.Close()
}

func (r *Repository) extract(ctx context.Context, file string) ([]model.PackageSpec, []model.Prerequisite, error) {
	if analyzer, ok := r.extractor.(extractor.Analyzer); ok {
		res, err := analyzer.Extract(ctx, file)
		if err != nil {
			return nil, nil, err
		}
		return res.Provides, res.Requires, nil
	}

	provides, err := r.extractor.Provides(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	requires, err := r.extractor.Requires(ctx, file)
	if err != nil {
		return nil, nil, err
	}
	return provides, requires, nil
}

// place copies an archive into the archive store.
//
// The archive store is append-only: an archive found in place already is accepted only
// if it has the content recorded for the distribution.
func (r *Repository) place(ctx context.Context, file string, dist model.Distribution) error {
	key := model.ArchiveKey(dist.Path)
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	err = r.archives.Put(ctx, key, f, storage.NoOverWrite)
	if err == nil || !errors.Is(err, storagestatus.ErrExists) {
		return err
	}

	return r.verifyStored(ctx, dist)
}

// verifyStored checks that the archive stored for a distribution has the recorded content
func (r *Repository) verifyStored(ctx context.Context, dist model.Distribution) error {
	key := model.ArchiveKey(dist.Path)
	stored, err := r.archives.Get(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		_ = stored.Close()
	}()
	identity, err := r.fingerprints.ProcessReader(stored)
	if err != nil {
		return err
	}
	if !identity.Matches(dist) {
		return status.ErrConsistencyViolation.WrapMessage("a different archive is stored at %q", key)
	}
	return nil
}

// Pull fetches an archive from an upstream repository and adds it.
//
// The URL must locate the archive under an authors/id directory, e.g.
// https://www.cpan.org/authors/id/J/JE/JEFF/Foo-1.0.tar.gz, which yields the author and
// the path of the distribution. The origin of the distribution is the base URL of the repository.
func (r *Repository) Pull(ctx context.Context, rawURL string, opts ...AddOption) (model.Distribution, error) {
	var o addOptions
	for _, apply := range opts {
		apply(&o)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return model.Distribution{}, status.ErrInvalidInput.WrapMessage("URL %q", rawURL).Wrap(err)
	}
	if u.Scheme == "" {
		return model.Distribution{}, status.ErrInvalidInput.WrapMessage("URL %q has no scheme", rawURL)
	}
	prefix, distPath, author, err := model.DistributionPathFromURLPath(u.Path)
	if err != nil {
		return model.Distribution{}, status.ErrInvalidInput.WrapMessage("URL %q", rawURL).Wrap(err)
	}
	origin := url.URL{Scheme: u.Scheme, User: u.User, Host: u.Host, Path: prefix}
	if o.source == "" {
		o.source = strings.TrimRight(origin.String(), "/")
	}

	unlock, l, err := r.lock(ctx, "pull", zap.String("url", rawURL), zap.String("path", distPath))
	if err != nil {
		return model.Distribution{}, err
	}
	defer unlock()

	if _, found, err := r.GetDistribution(ctx, distPath); err != nil {
		return model.Distribution{}, err
	} else if found {
		return model.Distribution{}, status.ErrConflict.WrapMessage("distribution %q exists already", distPath)
	}

	download := filepath.Join(r.internal, tmpDir, ksuid.New().String())
	archive := filepath.Join(download, path.Base(distPath))
	if err = r.download(ctx, l, rawURL, archive); err != nil {
		_ = os.RemoveAll(download)
		return model.Distribution{}, err
	}

	dist, err := r.add(ctx, l, archive, author, o)
	if errors.Is(err, status.ErrPartialIngestFailure) {
		// the recovery marker refers to the download
		return dist, err
	}
	if rerr := os.RemoveAll(download); rerr != nil {
		l.Warn("could not remove download", zap.String("file", archive), zap.Error(rerr))
	}
	return dist, err
}

func (r *Repository) download(ctx context.Context, l *zap.Logger, rawURL, archive string) error {
	if r.cfg.Fetch.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Fetch.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := r.fetcher.Fetch(ctx, rawURL, archive)
	metrics.Inc(metrics.Fetches, map[string]string{
		metrics.TagOperation: "pull",
		metrics.TagOutcome:   metrics.Outcome(err),
	})
	if err != nil {
		l.Error("could not fetch archive", zap.Error(err))
		if errors.Is(err, fetchstatus.ErrNotFound) {
			return status.ErrNotFound.WrapMessage("archive at %s", rawURL).Wrap(err)
		}
		return fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	l.Debug("fetched archive", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// PullPackage pulls the distribution providing a package from the upstream sources.
//
// When version is not empty, the distribution must provide at least that version. Pulling a
// distribution that is present already is not an error: the present distribution is returned.
func (r *Repository) PullPackage(ctx context.Context, name, version string, opts ...AddOption) (model.Distribution, error) {
	var o addOptions
	for _, apply := range opts {
		apply(&o)
	}

	entry, found, err := r.index.Locate(ctx, name, version)
	if err != nil {
		return model.Distribution{}, fmt.Errorf("locating package %s: %w", model.PackageSpec{Name: name, Version: version}, err)
	}
	if !found {
		return model.Distribution{}, status.ErrNotFound.
			WrapMessage("package %s in %v", model.PackageSpec{Name: name, Version: version}, r.cfg.Sources)
	}

	dist, err := r.Pull(ctx, entry.URL(), opts...)
	if err == nil || !errors.Is(err, status.ErrConflict) {
		return dist, err
	}

	dist, found, err = r.GetDistribution(ctx, entry.Distribution)
	if err != nil {
		return model.Distribution{}, err
	}
	if !found {
		return model.Distribution{}, status.ErrConsistencyViolation.WrapMessage("distribution %q vanished", entry.Distribution)
	}
	if o.stack != "" {
		if _, err = r.Register(ctx, ByName(o.stack), dist.Path); err != nil {
			return dist, err
		}
	}
	return dist, nil
}

