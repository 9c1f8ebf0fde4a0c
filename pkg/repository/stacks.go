// Copyright © 2018 One Concern

package repository

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oneconcern/darkpan/pkg/errors"
	"github.com/oneconcern/darkpan/pkg/index"
	metastatus "github.com/oneconcern/darkpan/pkg/metadata/status"
	"github.com/oneconcern/darkpan/pkg/metrics"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/oneconcern/darkpan/pkg/repository/status"
	vcsstatus "github.com/oneconcern/darkpan/pkg/vcs/status"
	"go.uber.org/zap"
)

const (
	forkRetries    = 2
	forkRetryDelay = 100 * time.Millisecond
)

// StackRef designates a stack, either by name or as an already resolved stack.
//
// The zero value designates the default stack.
type StackRef struct {
	name  string
	stack *model.Stack
}

// ByName designates a stack by its name. The name is normalized before lookup.
func ByName(name string) StackRef {
	return StackRef{name: name}
}

// Resolved wraps a stack which has already been looked up
func Resolved(stack model.Stack) StackRef {
	return StackRef{stack: &stack}
}

// DefaultStack designates the default stack
func DefaultStack() StackRef {
	return StackRef{}
}

func (s StackRef) String() string {
	switch {
	case s.stack != nil:
		return s.stack.Name
	case strings.TrimSpace(s.name) == "":
		return "(default)"
	default:
		return model.NormalizeStackName(s.name)
	}
}

// GetStack resolves a stack reference.
//
// A resolved stack is returned unchanged, and an empty reference yields the default stack.
// It fails with status.ErrNotFound when the stack does not exist, unless AllowMissing is set:
// the boolean result is then false.
func (r *Repository) GetStack(ctx context.Context, ref StackRef, opts ...StackOption) (model.Stack, bool, error) {
	if ref.stack != nil {
		return *ref.stack, true, nil
	}
	if strings.TrimSpace(ref.name) == "" {
		stack, err := r.GetDefaultStack(ctx)
		if err != nil {
			return model.Stack{}, false, err
		}
		return stack, true, nil
	}

	var o stackOptions
	for _, apply := range opts {
		apply(&o)
	}

	name := model.NormalizeStackName(ref.name)
	stack, err := r.meta.GetStack(ctx, name)
	if err != nil {
		if errors.Is(err, metastatus.ErrNotFound) {
			if o.allowMissing {
				return model.Stack{}, false, nil
			}
			return model.Stack{}, false, status.ErrNotFound.WrapMessage("stack %q", name).Wrap(err)
		}
		return model.Stack{}, false, err
	}
	return stack, true, nil
}

// GetDefaultStack returns the unique stack flagged as default.
//
// It fails with status.ErrConsistencyViolation when there is no default stack, or several.
func (r *Repository) GetDefaultStack(ctx context.Context) (model.Stack, error) {
	defaults, err := r.meta.DefaultStacks(ctx)
	if err != nil {
		return model.Stack{}, err
	}
	if len(defaults) != 1 {
		names := make([]string, 0, len(defaults))
		for _, stack := range defaults {
			names = append(names, stack.Name)
		}
		err = status.ErrConsistencyViolation.WrapMessage(
			"expected exactly one default stack, found %d %v", len(defaults), names)
		r.l.Error("default stack invariant is broken", zap.Strings("defaults", names))
		return model.Stack{}, err
	}
	return defaults[0], nil
}

// ListStacks returns all stacks, ordered by name
func (r *Repository) ListStacks(ctx context.Context) ([]model.Stack, error) {
	return r.meta.ListStacks(ctx)
}

// CreateStack creates a stack with some properties, as a copy of another stack.
//
// The new stack starts with the registrations of the copied stack (the default one, unless Fork is used),
// and its branch is forked from the copied stack's branch. The default stack is left unchanged.
func (r *Repository) CreateStack(ctx context.Context, name string, props map[string]string, opts ...CreateOption) (model.Stack, error) {
	var o createOptions
	for _, apply := range opts {
		apply(&o)
	}

	name = model.NormalizeStackName(name)
	if err := model.ValidateStackName(name); err != nil {
		return model.Stack{}, status.ErrInvalidInput.WrapMessage("stack %q", name).Wrap(err)
	}

	unlock, l, err := r.lock(ctx, "create_stack", zap.String("stack", name))
	if err != nil {
		return model.Stack{}, err
	}
	defer unlock()

	start := time.Now()
	stack, err := r.createStack(ctx, l, name, props, o)
	metrics.Since(start, metrics.Timing, map[string]string{
		metrics.TagOperation: "create_stack",
		metrics.TagOutcome:   metrics.Outcome(err),
	})
	if err != nil {
		l.Error("could not create stack", zap.Error(err))
		return model.Stack{}, err
	}
	metrics.Inc(metrics.Stacks, map[string]string{metrics.TagStack: name})
	return stack, nil
}

func (r *Repository) createStack(ctx context.Context, l *zap.Logger, name string, props map[string]string, o createOptions) (model.Stack, error) {
	_, found, err := r.GetStack(ctx, ByName(name), AllowMissing())
	if err != nil {
		return model.Stack{}, err
	}
	if found {
		return model.Stack{}, status.ErrConflict.WrapMessage("stack %q exists already", name)
	}

	from, _, err := r.GetStack(ctx, ByName(o.from))
	if err != nil {
		return model.Stack{}, err
	}

	stack := model.Stack{
		Name:       name,
		Properties: props,
		CreatedAt:  time.Now().UTC(),
	}
	if err = r.meta.CreateStack(ctx, stack, from.Name); err != nil {
		if errors.Is(err, metastatus.ErrExists) {
			return model.Stack{}, status.ErrConflict.WrapMessage("stack %q exists already", name).Wrap(err)
		}
		return model.Stack{}, err
	}

	if err = r.forkBranch(ctx, from.Name, name); err != nil {
		l.Warn("rolling back stack creation", zap.Error(err))
		if rerr := r.meta.DeleteStack(ctx, name); rerr != nil {
			l.Error("could not roll back stack metadata", zap.Error(rerr))
			return model.Stack{}, status.ErrConsistencyViolation.
				WrapMessage("stack %q is recorded without a branch, and could not be removed: %v", name, rerr).Wrap(err)
		}
		switch {
		case errors.Is(err, vcsstatus.ErrBranchExists):
			return model.Stack{}, status.ErrConflict.WrapMessage("branch of stack %q exists already", name).Wrap(err)
		case errors.Is(err, vcsstatus.ErrBranchNotFound):
			return model.Stack{}, status.ErrNotFound.WrapMessage("branch of stack %q", from.Name).Wrap(err)
		default:
			return model.Stack{}, err
		}
	}

	stack, err = r.meta.GetStack(ctx, name)
	if err != nil {
		return model.Stack{}, err
	}
	l.Info("created stack", zap.String("from", from.Name))
	return stack, nil
}

// forkBranch retries transient failures a few times. A missing source or an existing
// target branch are final.
func (r *Repository) forkBranch(ctx context.Context, from, to string) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(forkRetryDelay), forkRetries),
		ctx,
	)
	return backoff.Retry(func() error {
		err := r.history.ForkBranch(from, to)
		if err != nil && (errors.Is(err, vcsstatus.ErrBranchExists) || errors.Is(err, vcsstatus.ErrBranchNotFound)) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

// SetDefaultStack makes a stack the default one, in place of the current default
func (r *Repository) SetDefaultStack(ctx context.Context, ref StackRef) (model.Stack, error) {
	unlock, l, err := r.lock(ctx, "set_default_stack", zap.Stringer("stack", ref))
	if err != nil {
		return model.Stack{}, err
	}
	defer unlock()

	stack, _, err := r.GetStack(ctx, ref)
	if err != nil {
		return model.Stack{}, err
	}
	if err = r.meta.SetDefaultStack(ctx, stack.Name); err != nil {
		if errors.Is(err, metastatus.ErrNotFound) {
			return model.Stack{}, status.ErrNotFound.WrapMessage("stack %q", stack.Name).Wrap(err)
		}
		return model.Stack{}, err
	}
	l.Info("changed default stack")
	return r.GetDefaultStack(ctx)
}

// SetStackProperties merges properties into a stack. An empty value removes a property.
func (r *Repository) SetStackProperties(ctx context.Context, ref StackRef, props map[string]string) (model.Stack, error) {
	unlock, _, err := r.lock(ctx, "set_stack_properties", zap.Stringer("stack", ref))
	if err != nil {
		return model.Stack{}, err
	}
	defer unlock()

	stack, _, err := r.GetStack(ctx, ref)
	if err != nil {
		return model.Stack{}, err
	}
	updated, err := r.meta.SetStackProperties(ctx, stack.Name, props)
	if err != nil {
		if errors.Is(err, metastatus.ErrNotFound) {
			return model.Stack{}, status.ErrNotFound.WrapMessage("stack %q", stack.Name).Wrap(err)
		}
		return model.Stack{}, err
	}
	return updated, nil
}

// StackTip is the identifier of the latest history entry of a stack
func (r *Repository) StackTip(ctx context.Context, ref StackRef) (string, error) {
	stack, _, err := r.GetStack(ctx, ref)
	if err != nil {
		return "", err
	}
	tip, err := r.history.Tip(stack.Name)
	if err != nil {
		if errors.Is(err, vcsstatus.ErrBranchNotFound) {
			return "", status.ErrConsistencyViolation.WrapMessage("stack %q has no branch", stack.Name).Wrap(err)
		}
		return "", err
	}
	return tip, nil
}

// StackRegistry returns the packages listed by the registry committed at the tip of a stack
func (r *Repository) StackRegistry(ctx context.Context, ref StackRef) ([]index.Entry, error) {
	stack, _, err := r.GetStack(ctx, ref)
	if err != nil {
		return nil, err
	}
	content, err := r.history.ReadFile(stack.Name, RegistryFile)
	if err != nil {
		if errors.Is(err, vcsstatus.ErrBranchNotFound) {
			return nil, status.ErrConsistencyViolation.WrapMessage("stack %q has no branch", stack.Name).Wrap(err)
		}
		return nil, err
	}
	return parseRegistry(content)
}
