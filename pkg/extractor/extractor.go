// Copyright © 2018 One Concern

// Package extractor finds the packages a distribution archive provides and requires.
//
// The CPAN distribution metadata (META.json, or META.yml for older distributions) is used when present.
// When it does not list the provided packages, the package statements of the modules in the archive are
// scanned instead, and as a last resort the main package is inferred from the archive name.
package extractor

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/oneconcern/darkpan/pkg/model"
	"go.uber.org/zap"
)

const defaultMaxFileSize = 4 * 1024 * 1024

// Extractor enumerates the packages provided and required by an archive
type Extractor interface {
	Provides(ctx context.Context, archive string) ([]model.PackageSpec, error)
	Requires(ctx context.Context, archive string) ([]model.Prerequisite, error)
}

// Analyzer is an Extractor able to read both the provided and required packages in one pass
type Analyzer interface {
	Extractor
	Extract(ctx context.Context, archive string) (Result, error)
}

// Result of the analysis of an archive
type Result struct {
	Provides []model.PackageSpec
	Requires []model.Prerequisite
}

// Option for the extractor
type Option func(*Meta)

// Logger for the extractor
func Logger(l *zap.Logger) Option {
	return func(m *Meta) {
		if l != nil {
			m.l = l
		}
	}
}

// MaxFileSize limits the size of the files read from an archive
func MaxFileSize(sz int64) Option {
	return func(m *Meta) {
		if sz > 0 {
			m.maxFileSize = sz
		}
	}
}

// WithPhases selects the prerequisite phases reported by Requires (default: all)
func WithPhases(phases ...string) Option {
	return func(m *Meta) {
		m.phases = make(map[string]bool, len(phases))
		for _, p := range phases {
			m.phases[p] = true
		}
	}
}

var _ Analyzer = &Meta{}

// Meta extracts packages from the metadata and modules of an archive
type Meta struct {
	l           *zap.Logger
	maxFileSize int64
	phases      map[string]bool
}

// New extractor
func New(opts ...Option) *Meta {
	m := &Meta{
		l:           zap.NewNop(),
		maxFileSize: defaultMaxFileSize,
	}
	for _, apply := range opts {
		apply(m)
	}
	return m
}

// Provides lists the packages provided by an archive
func (m *Meta) Provides(ctx context.Context, archive string) ([]model.PackageSpec, error) {
	res, err := m.Extract(ctx, archive)
	if err != nil {
		return nil, err
	}
	return res.Provides, nil
}

// Requires lists the packages required by an archive
func (m *Meta) Requires(ctx context.Context, archive string) ([]model.Prerequisite, error) {
	res, err := m.Extract(ctx, archive)
	if err != nil {
		return nil, err
	}
	return res.Requires, nil
}

// Extract analyzes an archive
func (m *Meta) Extract(ctx context.Context, archive string) (Result, error) {
	contents, err := m.readArchive(ctx, archive)
	if err != nil {
		return Result{}, err
	}

	var meta *distMeta
	switch {
	case contents.metaJSON != nil:
		meta, err = parseMetaJSON(contents.metaJSON)
	case contents.metaYAML != nil:
		meta, err = parseMetaYAML(contents.metaYAML)
	}
	if err != nil {
		return Result{}, err
	}
	if meta == nil {
		meta = &distMeta{}
	}

	_, distVersion, _ := model.ParseDistName(path.Base(archive))
	if meta.version == "" {
		meta.version = distVersion
	}

	res := Result{
		Provides: meta.provides,
		Requires: m.filterPhases(meta.requires),
	}
	if len(res.Provides) == 0 {
		res.Provides = scanModules(contents.modules, meta)
	}
	if len(res.Provides) == 0 {
		if main, ok := model.MainPackage(path.Base(archive)); ok {
			res.Provides = []model.PackageSpec{main}
		}
	}

	sortSpecs(res.Provides)
	sort.SliceStable(res.Requires, func(i, j int) bool {
		if res.Requires[i].Phase != res.Requires[j].Phase {
			return res.Requires[i].Phase < res.Requires[j].Phase
		}
		return res.Requires[i].Name < res.Requires[j].Name
	})

	m.l.Debug("extracted packages",
		zap.String("archive", archive),
		zap.Int("provides", len(res.Provides)),
		zap.Int("requires", len(res.Requires)),
	)
	return res, nil
}

func (m *Meta) filterPhases(prereqs []model.Prerequisite) []model.Prerequisite {
	res := make([]model.Prerequisite, 0, len(prereqs))
	for _, p := range prereqs {
		// perl itself is not a package
		if p.Name == "perl" {
			continue
		}
		if m.phases != nil && !m.phases[p.Phase] {
			continue
		}
		res = append(res, p)
	}
	return res
}

func sortSpecs(specs []model.PackageSpec) {
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].Name < specs[j].Name
	})
}

// isIndexable tells if a file or package should be considered, given the no_index section of the metadata
func (d *distMeta) isIndexable(file, pkg string) bool {
	for _, dir := range d.noIndexDirs {
		dir = strings.Trim(dir, "/") + "/"
		if strings.HasPrefix(file, dir) {
			return false
		}
	}
	for _, f := range d.noIndexFiles {
		if file == f {
			return false
		}
	}
	for _, p := range d.noIndexPackages {
		if pkg == p {
			return false
		}
	}
	for _, ns := range d.noIndexNamespaces {
		if strings.HasPrefix(pkg, strings.TrimSuffix(ns, "::")+"::") {
			return false
		}
	}
	return true
}
