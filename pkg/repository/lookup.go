// Copyright © 2018 One Concern

package repository

import (
	"context"
	"strings"

	"github.com/oneconcern/darkpan/pkg/errors"
	metastatus "github.com/oneconcern/darkpan/pkg/metadata/status"
	"github.com/oneconcern/darkpan/pkg/model"
)

// GetPackage looks up a package by name.
//
// Without OnStack, the package with the highest version in the repository is returned.
// With OnStack, the package currently registered on that stack is returned.
// The boolean result is false when there is no such package.
func (r *Repository) GetPackage(ctx context.Context, name string, opts ...PackageOption) (model.Package, bool, error) {
	var o packageOptions
	for _, apply := range opts {
		apply(&o)
	}

	if o.stack == nil {
		pkg, err := r.meta.LatestPackage(ctx, name)
		if err != nil {
			if errors.Is(err, metastatus.ErrNotFound) {
				return model.Package{}, false, nil
			}
			return model.Package{}, false, err
		}
		return pkg, true, nil
	}

	stack, _, err := r.GetStack(ctx, *o.stack)
	if err != nil {
		return model.Package{}, false, err
	}
	reg, err := r.meta.Registration(ctx, stack.Name, name)
	if err != nil {
		if errors.Is(err, metastatus.ErrNotFound) {
			return model.Package{}, false, nil
		}
		return model.Package{}, false, err
	}
	return reg.Package, true, nil
}

// GetDistribution looks up a distribution by its path, e.g. J/JE/JEFF/Foo-1.0.tar.gz.
//
// The boolean result is false when there is no such distribution.
func (r *Repository) GetDistribution(ctx context.Context, path string) (model.Distribution, bool, error) {
	dist, err := r.meta.GetDistribution(ctx, strings.TrimPrefix(path, "/"))
	if err != nil {
		if errors.Is(err, metastatus.ErrNotFound) {
			return model.Distribution{}, false, nil
		}
		return model.Distribution{}, false, err
	}
	return dist, true, nil
}

// ListDistributions returns all distributions, ordered by path
func (r *Repository) ListDistributions(ctx context.Context) ([]model.Distribution, error) {
	return r.meta.ListDistributions(ctx)
}

// Registrations lists the packages registered on a stack, ordered by name
func (r *Repository) Registrations(ctx context.Context, ref StackRef) ([]model.Registration, error) {
	stack, _, err := r.GetStack(ctx, ref)
	if err != nil {
		return nil, err
	}
	return r.meta.Registrations(ctx, stack.Name)
}
