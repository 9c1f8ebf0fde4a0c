// Copyright © 2018 One Concern

package repository

import (
	"context"

	"github.com/oneconcern/darkpan/pkg/index"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/vcs"
)

// MetadataStore persists distributions, packages, stacks and registrations
type MetadataStore interface {
	CreateDistribution(context.Context, model.Distribution) error
	GetDistribution(context.Context, string) (model.Distribution, error)
	ListDistributions(context.Context) ([]model.Distribution, error)
	DeleteDistribution(context.Context, string) error
	LatestPackage(context.Context, string) (model.Package, error)

	CreateStack(ctx context.Context, stack model.Stack, from string) error
	GetStack(context.Context, string) (model.Stack, error)
	ListStacks(context.Context) ([]model.Stack, error)
	DefaultStacks(context.Context) ([]model.Stack, error)
	SetDefaultStack(context.Context, string) error
	SetStackProperties(context.Context, string, map[string]string) (model.Stack, error)
	DeleteStack(context.Context, string) error

	Register(ctx context.Context, stack string, pkgs ...model.Package) ([]model.Registration, error)
	Unregister(ctx context.Context, stack, name string) (model.Registration, error)
	Registration(ctx context.Context, stack, name string) (model.Registration, error)
	Registrations(ctx context.Context, stack string) ([]model.Registration, error)

	Close() error
}

// History keeps one branch per stack
type History interface {
	CreateInitialBranch(name string) error
	ForkBranch(from, to string) error
	Checkout(branch string, orphan bool) error
	WriteFile(file string, data []byte) error
	Commit(...vcs.CommitOption) (string, error)
	Status(file string) (bool, error)
	Discard() error
	Tip(branch string) (string, error)
	ReadFile(branch, file string) ([]byte, error)
	Log(branch string) ([]string, error)
	Merge(from, to string) error
}

// Locker guards mutating operations
type Locker interface {
	Lock(context.Context) (func(), error)
}

// IndexCache resolves package names to upstream distributions
type IndexCache interface {
	Locate(ctx context.Context, name, version string) (index.Entry, bool, error)
	Search(ctx context.Context, prefix string) ([]index.Entry, error)
	Invalidate() error
}
