// Copyright © 2018 One Concern

package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oneconcern/darkpan/pkg/errors"
	metastatus "github.com/oneconcern/darkpan/pkg/metadata/status"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

const markerExt = ".yaml"

// Marker records a distribution whose archive is not placed in the archive store yet
type Marker struct {
	ID           string    `json:"id" yaml:"id"`
	Distribution string    `json:"distribution" yaml:"distribution"`
	Archive      string    `json:"archive" yaml:"archive"` // local file holding the archive
	CreatedAt    time.Time `json:"createdAt" yaml:"created_at"`
}

// Recovery is the outcome of the recovery of one marker
type Recovery struct {
	Marker
	RolledBack bool  `json:"rolledBack,omitempty" yaml:"rolled_back,omitempty"`
	Err        error `json:"-" yaml:"-"`
}

func (r *Repository) markerPath(id string) string {
	return filepath.Join(r.internal, recoveryDir, id+markerExt)
}

func (r *Repository) writeMarker(distPath, archive string) (string, error) {
	abs, err := filepath.Abs(archive)
	if err != nil {
		return "", err
	}
	m := Marker{
		ID:           ksuid.New().String(),
		Distribution: distPath,
		Archive:      abs,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", err
	}
	pth := r.markerPath(m.ID)
	if err = os.WriteFile(pth, data, 0600); err != nil {
		return "", err
	}
	return pth, nil
}

// Markers lists the pending recovery markers, oldest first
func (r *Repository) Markers() ([]Marker, error) {
	entries, err := os.ReadDir(filepath.Join(r.internal, recoveryDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	markers := make([]Marker, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), markerExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(r.internal, recoveryDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var m Marker
		if err = yaml.Unmarshal(data, &m); err != nil {
			return nil, status.ErrConsistencyViolation.WrapMessage("unreadable recovery marker %s", entry.Name()).Wrap(err)
		}
		m.ID = strings.TrimSuffix(entry.Name(), markerExt)
		markers = append(markers, m)
	}
	// ksuids sort by creation time
	sort.Slice(markers, func(i, j int) bool { return markers[i].ID < markers[j].ID })
	return markers, nil
}

// Recover completes the ingestion of partially ingested distributions.
//
// The archive of each pending distribution is placed in the archive store, and its marker is removed.
// With Rollback, the distribution is removed from metadata instead, unless its archive was placed already.
// Markers which cannot be recovered are kept, and reported with their error.
func (r *Repository) Recover(ctx context.Context, opts ...RecoverOption) ([]Recovery, error) {
	var o recoverOptions
	for _, apply := range opts {
		apply(&o)
	}

	unlock, l, err := r.lock(ctx, "recover", zap.Bool("rollback", o.rollback))
	if err != nil {
		return nil, err
	}
	defer unlock()

	markers, err := r.Markers()
	if err != nil {
		return nil, err
	}

	results := make([]Recovery, 0, len(markers))
	var failed int
	for _, m := range markers {
		res := r.recoverOne(ctx, l.With(zap.String("marker", m.ID), zap.String("path", m.Distribution)), m, o)
		if res.Err != nil {
			failed++
		}
		results = append(results, res)
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d partially ingested distributions could not be recovered", failed, len(markers))
	}
	return results, nil
}

func (r *Repository) recoverOne(ctx context.Context, l *zap.Logger, m Marker, o recoverOptions) Recovery {
	res := Recovery{Marker: m}

	dist, found, err := r.GetDistribution(ctx, m.Distribution)
	if err != nil {
		res.Err = err
		return res
	}
	if !found {
		// the metadata was never committed, or was rolled back already
		l.Info("dropping stale recovery marker")
		res.Err = r.clearMarker(l, m)
		return res
	}

	placed, err := r.archives.Has(ctx, model.ArchiveKey(dist.Path))
	if err != nil {
		res.Err = err
		return res
	}

	if o.rollback && !placed {
		// the stacks must not keep packages of a distribution that goes away
		if err = r.unregisterDistribution(ctx, l, dist.Path); err != nil {
			l.Error("could not unregister distribution", zap.Error(err))
			res.Err = err
			return res
		}
		if err = r.meta.DeleteDistribution(ctx, dist.Path); err != nil && !errors.Is(err, metastatus.ErrNotFound) {
			l.Error("could not roll back distribution", zap.Error(err))
			res.Err = err
			return res
		}
		l.Info("rolled back partially ingested distribution")
		res.RolledBack = true
		res.Err = r.clearMarker(l, m)
		return res
	}

	if placed {
		// interrupted after the archive was stored
		if err = r.verifyStored(ctx, dist); err != nil {
			res.Err = err
			return res
		}
	} else {
		identity, err := r.fingerprints.Process(m.Archive)
		if err != nil {
			res.Err = status.ErrInvalidInput.WrapMessage("archive %q of distribution %q", m.Archive, dist.Path).Wrap(err)
			return res
		}
		if !identity.Matches(dist) {
			res.Err = status.ErrConsistencyViolation.WrapMessage("archive %q does not have the content recorded for %q", m.Archive, dist.Path)
			return res
		}
		if err = r.place(ctx, m.Archive, dist); err != nil {
			l.Error("could not place archive", zap.Error(err))
			res.Err = status.ErrPartialIngestFailure.WrapMessage("distribution %q", dist.Path).Wrap(err)
			return res
		}
	}
	l.Info("recovered partially ingested distribution")
	res.Err = r.clearMarker(l, m)
	return res
}

// clearMarker removes a marker, and the download it refers to
func (r *Repository) clearMarker(l *zap.Logger, m Marker) error {
	downloads := filepath.Join(r.internal, tmpDir) + string(filepath.Separator)
	if strings.HasPrefix(m.Archive, downloads) {
		if err := os.RemoveAll(filepath.Dir(m.Archive)); err != nil {
			l.Warn("could not remove download", zap.String("file", m.Archive), zap.Error(err))
		}
	}
	if err := os.Remove(r.markerPath(m.ID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
