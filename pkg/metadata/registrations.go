package metadata

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/metadata/status"
	"github.com/oneconcern/darkpan/pkg/model"
)

// Register pins packages onto a stack. A registration for a package name
// supersedes any previous registration of that name on the stack.
//
// It returns the registrations that were superseded.
func (s *Store) Register(_ context.Context, stack string, pkgs ...model.Package) ([]model.Registration, error) {
	pkgs = uniqueByName(pkgs)
	var superseded []model.Registration
	err := s.update(func(txn *badger.Txn) error {
		superseded = superseded[:0]

		var st model.Stack
		if err := getStack(txn, stack, &st); err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, pkg := range pkgs {
			if pkg.Distribution == "" {
				return status.ErrNameRequired.WrapMessage("distribution of package %q", pkg.Name)
			}
			found, err := exists(txn, distKey(pkg.Distribution))
			if err != nil {
				return err
			}
			if !found {
				return status.ErrNotFound.WrapMessage("distribution %q", pkg.Distribution)
			}

			var previous model.Registration
			err = getJSON(txn, regKey(stack, pkg.Name), &previous)
			switch {
			case err == nil:
				superseded = append(superseded, previous)
			case !errors.Is(err, status.ErrNotFound):
				return err
			}

			reg := model.Registration{Stack: stack, Package: pkg, RegisteredAt: now}
			if err = setJSON(txn, regKey(stack, pkg.Name), reg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return superseded, nil
}

// uniqueByName keeps one package per name, with the highest version, in the order of first appearance
func uniqueByName(pkgs []model.Package) []model.Package {
	unique := make([]model.Package, 0, len(pkgs))
	seen := make(map[string]int, len(pkgs))
	for _, pkg := range pkgs {
		i, ok := seen[pkg.Name]
		if !ok {
			seen[pkg.Name] = len(unique)
			unique = append(unique, pkg)
			continue
		}
		if model.CompareVersions(pkg.Version, unique[i].Version) > 0 {
			unique[i] = pkg
		}
	}
	return unique
}

// Unregister removes the registration of a package name from a stack
func (s *Store) Unregister(_ context.Context, stack, name string) (model.Registration, error) {
	var reg model.Registration
	err := s.update(func(txn *badger.Txn) error {
		if err := getJSON(txn, regKey(stack, name), &reg); err != nil {
			if errors.Is(err, status.ErrNotFound) {
				return status.ErrNotFound.WrapMessage("package %q on stack %q", name, stack)
			}
			return err
		}
		return txn.Delete(regKey(stack, name))
	})
	if err != nil {
		return model.Registration{}, err
	}
	return reg, nil
}

// Registration returns the current registration of a package name on a stack
func (s *Store) Registration(_ context.Context, stack, name string) (model.Registration, error) {
	var reg model.Registration
	err := s.view(func(txn *badger.Txn) error {
		var st model.Stack
		if err := getStack(txn, stack, &st); err != nil {
			return err
		}
		if err := getJSON(txn, regKey(stack, name), &reg); err != nil {
			if errors.Is(err, status.ErrNotFound) {
				return status.ErrNotFound.WrapMessage("package %q on stack %q", name, stack)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return model.Registration{}, err
	}
	return reg, nil
}

// Registrations lists all registrations of a stack, ordered by package name
func (s *Store) Registrations(_ context.Context, stack string) ([]model.Registration, error) {
	var result []model.Registration
	err := s.view(func(txn *badger.Txn) error {
		var st model.Stack
		if err := getStack(txn, stack, &st); err != nil {
			return err
		}
		return scan(txn, regStackPrefix(stack), func(key, value []byte) error {
			var reg model.Registration
			if err := decode(key, value, &reg); err != nil {
				return err
			}
			result = append(result, reg)
			return nil
		})
	})
	return result, err
}

func copyRegistrations(txn *badger.Txn, from, to string) error {
	var source model.Stack
	if err := getStack(txn, from, &source); err != nil {
		return err
	}

	var regs []model.Registration
	err := scan(txn, regStackPrefix(from), func(key, value []byte) error {
		var reg model.Registration
		if err := decode(key, value, &reg); err != nil {
			return err
		}
		regs = append(regs, reg)
		return nil
	})
	if err != nil {
		return err
	}

	for _, reg := range regs {
		reg.Stack = to
		if err := setJSON(txn, regKey(to, reg.Package.Name), reg); err != nil {
			return err
		}
	}
	return nil
}
