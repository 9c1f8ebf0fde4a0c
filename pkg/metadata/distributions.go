package metadata

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v3"
	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/metadata/status"
	"github.com/oneconcern/darkpan/pkg/model"
)

// CreateDistribution records a distribution together with the packages it provides
// and its prerequisites, in one transaction.
//
// It fails with status.ErrExists when a distribution is already recorded at that path.
func (s *Store) CreateDistribution(_ context.Context, dist model.Distribution) error {
	if strings.TrimSpace(dist.Path) == "" {
		return status.ErrNameRequired.WrapMessage("distribution path")
	}
	for i := range dist.Packages {
		dist.Packages[i].Distribution = dist.Path
	}

	return s.update(func(txn *badger.Txn) error {
		found, err := exists(txn, distKey(dist.Path))
		if err != nil {
			return err
		}
		if found {
			return status.ErrExists.WrapMessage("distribution %q", dist.Path)
		}
		if err = setJSON(txn, distKey(dist.Path), dist); err != nil {
			return err
		}
		for _, pkg := range dist.Packages {
			if err = setJSON(txn, pkgKey(pkg.Name, dist.Path), pkg); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetDistribution retrieves a distribution by its path
func (s *Store) GetDistribution(_ context.Context, path string) (model.Distribution, error) {
	var dist model.Distribution
	err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, distKey(path), &dist)
	})
	if err != nil {
		if errors.Is(err, status.ErrNotFound) {
			return model.Distribution{}, status.ErrNotFound.WrapMessage("distribution %q", path)
		}
		return model.Distribution{}, err
	}
	return dist, nil
}

// ListDistributions returns all distributions, ordered by path
func (s *Store) ListDistributions(_ context.Context) ([]model.Distribution, error) {
	var result []model.Distribution
	err := s.view(func(txn *badger.Txn) error {
		return scan(txn, distPref[:], func(key, value []byte) error {
			var dist model.Distribution
			if err := decode(key, value, &dist); err != nil {
				return err
			}
			result = append(result, dist)
			return nil
		})
	})
	return result, err
}

// DeleteDistribution removes a distribution, the packages it provides and any
// registration of these packages on stacks.
func (s *Store) DeleteDistribution(_ context.Context, path string) error {
	return s.update(func(txn *badger.Txn) error {
		var dist model.Distribution
		if err := getJSON(txn, distKey(path), &dist); err != nil {
			if errors.Is(err, status.ErrNotFound) {
				return status.ErrNotFound.WrapMessage("distribution %q", path)
			}
			return err
		}

		for _, pkg := range dist.Packages {
			if err := txn.Delete(pkgKey(pkg.Name, path)); err != nil {
				return err
			}
		}

		var stale [][]byte
		err := scan(txn, regPref[:], func(key, value []byte) error {
			var reg model.Registration
			if err := decode(key, value, &reg); err != nil {
				return err
			}
			if reg.Package.Distribution == path {
				stale = append(stale, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		return txn.Delete(distKey(path))
	})
}

// PackagesByName returns all the packages with this name, from any distribution
func (s *Store) PackagesByName(_ context.Context, name string) (model.Packages, error) {
	var result model.Packages
	err := s.view(func(txn *badger.Txn) error {
		return scan(txn, pkgNamePrefix(name), func(key, value []byte) error {
			var pkg model.Package
			if err := decode(key, value, &pkg); err != nil {
				return err
			}
			result = append(result, pkg)
			return nil
		})
	})
	return result, err
}

// LatestPackage returns the package with the highest version for this name
func (s *Store) LatestPackage(ctx context.Context, name string) (model.Package, error) {
	pkgs, err := s.PackagesByName(ctx, name)
	if err != nil {
		return model.Package{}, err
	}
	latest, ok := pkgs.Latest()
	if !ok {
		return model.Package{}, status.ErrNotFound.WrapMessage("package %q", name)
	}
	return latest, nil
}

// ListPackageNames returns the distinct names of all known packages starting with some prefix
func (s *Store) ListPackageNames(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := s.view(func(txn *badger.Txn) error {
		for _, key := range scanKeys(txn, prefixed(pkgPref[:], prefix)) {
			rest := key[len(pkgPref):]
			idx := bytes.IndexByte(rest, sep)
			if idx < 0 {
				continue
			}
			name := string(rest[:idx])
			if len(names) == 0 || names[len(names)-1] != name {
				names = append(names, name)
			}
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}
