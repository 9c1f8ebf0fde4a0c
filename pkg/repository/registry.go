// Copyright © 2018 One Concern

package repository

import (
	"bytes"
	"context"
	"fmt"

	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/index"
	metastatus "github.com/oneconcern/darkpan/pkg/metadata/status"
	"github.com/oneconcern/darkpan/pkg/metrics"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	"github.com/oneconcern/darkpan/pkg/vcs"
	vcsstatus "github.com/oneconcern/darkpan/pkg/vcs/status"
	"go.uber.org/zap"
)

// Register pins all the packages of a distribution onto a stack.
//
// A package registered on the stack under the same name is superseded: the superseded
// registrations are returned. The registry of the stack is committed on its branch.
func (r *Repository) Register(ctx context.Context, ref StackRef, distPath string) ([]model.Registration, error) {
	unlock, l, err := r.lock(ctx, "register", zap.Stringer("stack", ref), zap.String("path", distPath))
	if err != nil {
		return nil, err
	}
	defer unlock()

	dist, found, err := r.GetDistribution(ctx, distPath)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, status.ErrNotFound.WrapMessage("distribution %q", distPath)
	}
	return r.register(ctx, l, ref, dist)
}

func (r *Repository) register(ctx context.Context, l *zap.Logger, ref StackRef, dist model.Distribution) ([]model.Registration, error) {
	stack, _, err := r.GetStack(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(dist.Packages) == 0 {
		return nil, status.ErrInvalidInput.WrapMessage("distribution %q provides no package", dist.Path)
	}
	placed, err := r.archives.Has(ctx, model.ArchiveKey(dist.Path))
	if err != nil {
		return nil, err
	}
	if !placed {
		return nil, status.ErrInvalidInput.WrapMessage("distribution %q has no stored archive: it must be recovered first", dist.Path)
	}

	superseded, err := r.meta.Register(ctx, stack.Name, dist.Packages...)
	if err != nil {
		if errors.Is(err, metastatus.ErrNotFound) {
			return nil, status.ErrNotFound.WrapMessage("registering %q on stack %q", dist.Path, stack.Name).Wrap(err)
		}
		return nil, err
	}

	message := fmt.Sprintf("register %s on stack %s", dist.Path, stack.Name)
	if err = r.commitRegistry(ctx, stack.Name, message, false); err != nil {
		l.Warn("reverting registration", zap.String("stack", stack.Name), zap.Error(err))
		r.revertRegistration(ctx, l, stack.Name, dist.Packages, superseded)
		return nil, err
	}

	metrics.Int64(metrics.Registrations, int64(len(dist.Packages)), map[string]string{metrics.TagStack: stack.Name})
	l.Info("registered distribution", zap.String("stack", stack.Name), zap.Int("superseded", len(superseded)))
	return superseded, nil
}

// Unregister removes the registration of a package from a stack
func (r *Repository) Unregister(ctx context.Context, ref StackRef, name string) (model.Registration, error) {
	unlock, l, err := r.lock(ctx, "unregister", zap.Stringer("stack", ref), zap.String("package", name))
	if err != nil {
		return model.Registration{}, err
	}
	defer unlock()

	stack, _, err := r.GetStack(ctx, ref)
	if err != nil {
		return model.Registration{}, err
	}
	reg, err := r.meta.Unregister(ctx, stack.Name, name)
	if err != nil {
		if errors.Is(err, metastatus.ErrNotFound) {
			return model.Registration{}, status.ErrNotFound.WrapMessage("package %q on stack %q", name, stack.Name).Wrap(err)
		}
		return model.Registration{}, err
	}

	message := fmt.Sprintf("unregister %s from stack %s", name, stack.Name)
	if err = r.commitRegistry(ctx, stack.Name, message, false); err != nil {
		l.Warn("reverting unregistration", zap.Error(err))
		r.revertRegistration(ctx, l, stack.Name, nil, []model.Registration{reg})
		return model.Registration{}, err
	}
	l.Info("unregistered package", zap.String("stack", stack.Name))
	return reg, nil
}

// unregisterDistribution removes the registrations of the packages of a distribution from all stacks,
// and commits the registry of every stack changed.
//
// When a commit fails, the registrations of that stack are put back.
func (r *Repository) unregisterDistribution(ctx context.Context, l *zap.Logger, distPath string) error {
	stacks, err := r.meta.ListStacks(ctx)
	if err != nil {
		return err
	}
	for _, stack := range stacks {
		regs, err := r.meta.Registrations(ctx, stack.Name)
		if err != nil {
			return err
		}
		var removed []model.Registration
		for _, reg := range regs {
			if reg.Package.Distribution != distPath {
				continue
			}
			if _, err = r.meta.Unregister(ctx, stack.Name, reg.Package.Name); err != nil {
				r.revertRegistration(ctx, l, stack.Name, nil, removed)
				return err
			}
			removed = append(removed, reg)
		}
		if len(removed) == 0 {
			continue
		}

		message := fmt.Sprintf("unregister %s from stack %s", distPath, stack.Name)
		if err = r.commitRegistry(ctx, stack.Name, message, false); err != nil {
			l.Warn("reverting unregistration", zap.String("stack", stack.Name), zap.Error(err))
			r.revertRegistration(ctx, l, stack.Name, nil, removed)
			return err
		}
		l.Info("unregistered distribution", zap.String("stack", stack.Name), zap.Int("packages", len(removed)))
	}
	return nil
}

// revertRegistration puts back the registrations of a stack as they were before a failed commit
func (r *Repository) revertRegistration(ctx context.Context, l *zap.Logger, stack string, added []model.Package, removed []model.Registration) {
	for _, pkg := range added {
		if _, err := r.meta.Unregister(ctx, stack, pkg.Name); err != nil && !errors.Is(err, metastatus.ErrNotFound) {
			l.Error("could not revert registration", zap.String("package", pkg.Name), zap.Error(err))
		}
	}
	if len(removed) == 0 {
		return
	}
	pkgs := make([]model.Package, 0, len(removed))
	for _, reg := range removed {
		pkgs = append(pkgs, reg.Package)
	}
	if _, err := r.meta.Register(ctx, stack, pkgs...); err != nil {
		l.Error("could not restore registrations", zap.Int("packages", len(pkgs)), zap.Error(err))
	}
}

// commitRegistry writes the registry of a stack from its registrations, and commits it on the stack branch.
//
// With orphan set, the branch is expected to have been created with CreateInitialBranch.
func (r *Repository) commitRegistry(ctx context.Context, stack, message string, orphan bool) error {
	regs, err := r.meta.Registrations(ctx, stack)
	if err != nil {
		return err
	}
	content, err := renderRegistry(stack, regs)
	if err != nil {
		return err
	}

	if !orphan {
		if err = r.checkout(stack); err != nil {
			return err
		}
	}
	if err = r.history.WriteFile(RegistryFile, content); err != nil {
		r.discard()
		return fmt.Errorf("writing registry of stack %q: %w", stack, err)
	}
	if _, err = r.history.Commit(vcs.Username(r.username), vcs.Message(message), vcs.Orphan(orphan)); err != nil {
		r.discard()
		return fmt.Errorf("committing registry of stack %q: %w", stack, err)
	}
	return nil
}

func (r *Repository) checkout(stack string) error {
	err := r.history.Checkout(stack, false)
	if errors.Is(err, vcsstatus.ErrDirtyWorktree) {
		// left over by an interrupted operation
		r.discard()
		err = r.history.Checkout(stack, false)
	}
	if err != nil {
		if errors.Is(err, vcsstatus.ErrBranchNotFound) {
			return status.ErrConsistencyViolation.WrapMessage("stack %q has no branch", stack).Wrap(err)
		}
		return fmt.Errorf("checking out stack %q: %w", stack, err)
	}
	return nil
}

func (r *Repository) discard() {
	if err := r.history.Discard(); err != nil {
		r.l.Error("could not discard changes to stack history", zap.Error(err))
	}
}

func renderRegistry(stack string, regs []model.Registration) ([]byte, error) {
	entries := make([]index.Entry, 0, len(regs))
	for _, reg := range regs {
		entries = append(entries, index.Entry{
			PackageSpec:  reg.Package.PackageSpec,
			Distribution: reg.Package.Distribution,
		})
	}
	header := index.Header{
		"File":        "02packages.details.txt",
		"Description": "Packages registered on stack " + stack,
		"Columns":     "package name, version, path",
		"Written-By":  "darkpan",
	}
	var buf bytes.Buffer
	if err := index.Write(&buf, header, entries); err != nil {
		return nil, fmt.Errorf("rendering registry of stack %q: %w", stack, err)
	}
	return buf.Bytes(), nil
}

// parseRegistry reads the packages listed in a registry
func parseRegistry(content []byte) ([]index.Entry, error) {
	_, entries, err := index.Parse(bytes.NewReader(content), "")
	return entries, err
}
