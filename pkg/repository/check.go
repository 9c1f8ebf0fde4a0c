// Copyright © 2018 One Concern

package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// ProblemKind qualifies a discrepancy between the metadata and the archive store
type ProblemKind string

const (
	// OrphanArchive is an archive stored without any distribution recorded for it
	OrphanArchive ProblemKind = "orphan-archive"

	// MissingArchive is a distribution whose archive is not stored, and not pending recovery
	MissingArchive ProblemKind = "missing-archive"

	// PendingRecovery is a distribution whose archive is not stored yet, with a recovery marker
	PendingRecovery ProblemKind = "pending-recovery"

	// AlteredArchive is a stored archive which content differs from the recorded identity
	AlteredArchive ProblemKind = "altered-archive"
)

// Problem found by Check
type Problem struct {
	Kind ProblemKind `json:"kind" yaml:"kind"`
	Path string      `json:"path" yaml:"path"`
	Err  error       `json:"-" yaml:"-"`
}

// Check compares the distributions recorded in metadata with the archives in the archive store.
//
// Problems are reported sorted by path. Check holds the repository lock, so that no ingestion
// is observed half way.
func (r *Repository) Check(ctx context.Context, opts ...CheckOption) ([]Problem, error) {
	o := checkOptions{concurrency: 4}
	for _, apply := range opts {
		apply(&o)
	}

	unlock, l, err := r.lock(ctx, "check")
	if err != nil {
		return nil, err
	}
	defer unlock()

	dists, err := r.meta.ListDistributions(ctx)
	if err != nil {
		return nil, err
	}
	markers, err := r.Markers()
	if err != nil {
		return nil, err
	}
	keys, err := r.archives.KeysPrefix(ctx, model.AuthorsDir+"/")
	if err != nil {
		return nil, err
	}

	pending := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		pending[m.Distribution] = struct{}{}
	}
	stored := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		stored[strings.TrimPrefix(key, model.AuthorsDir+"/")] = struct{}{}
	}

	var problems []Problem
	recorded := make(map[string]struct{}, len(dists))
	toVerify := make([]model.Distribution, 0, len(dists))
	for _, dist := range dists {
		recorded[dist.Path] = struct{}{}
		if _, ok := stored[dist.Path]; ok {
			toVerify = append(toVerify, dist)
			continue
		}
		if _, ok := pending[dist.Path]; ok {
			problems = append(problems, Problem{Kind: PendingRecovery, Path: dist.Path})
			continue
		}
		problems = append(problems, Problem{Kind: MissingArchive, Path: dist.Path})
	}
	for distPath := range stored {
		if _, ok := recorded[distPath]; !ok {
			problems = append(problems, Problem{Kind: OrphanArchive, Path: distPath})
		}
	}

	if o.verify {
		altered, err := r.verifyAll(ctx, toVerify, o.concurrency)
		if err != nil {
			return nil, err
		}
		problems = append(problems, altered...)
	}

	sort.Slice(problems, func(i, j int) bool {
		if problems[i].Path != problems[j].Path {
			return problems[i].Path < problems[j].Path
		}
		return problems[i].Kind < problems[j].Kind
	})
	for _, p := range problems {
		l.Warn("inconsistency", zap.String("kind", string(p.Kind)), zap.String("path", p.Path), zap.Error(p.Err))
	}
	return problems, nil
}

func (r *Repository) verifyAll(ctx context.Context, dists []model.Distribution, concurrency int) ([]Problem, error) {
	p := pool.NewWithResults[*Problem]().WithContext(ctx).WithMaxGoroutines(concurrency)
	for _, dist := range dists {
		dist := dist
		p.Go(func(ctx context.Context) (*Problem, error) {
			err := r.verifyStored(ctx, dist)
			switch {
			case err == nil:
				return nil, nil
			case errors.Is(err, status.ErrConsistencyViolation):
				return &Problem{Kind: AlteredArchive, Path: dist.Path, Err: err}, nil
			default:
				return nil, err
			}
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	var problems []Problem
	for _, res := range results {
		if res != nil {
			problems = append(problems, *res)
		}
	}
	return problems, nil
}
