// Package status declares error constants returned by the stack version control.
package status

import "github.com/oneconcern/darkpan/pkg/errors"

var (
	// ErrAlreadyInitialized indicates that a history store already exists at the location
	ErrAlreadyInitialized = errors.New("version history already initialized")

	// ErrNotInitialized indicates that there is no history store at the location
	ErrNotInitialized = errors.New("version history not initialized")

	// ErrBranchNotFound indicates a reference to a missing branch
	ErrBranchNotFound = errors.New("branch not found")

	// ErrBranchExists indicates an attempt to create a branch that exists already
	ErrBranchExists = errors.New("branch exists already")

	// ErrDirtyWorktree indicates that uncommitted changes prevent switching branches
	ErrDirtyWorktree = errors.New("working tree has uncommitted changes")

	// ErrInvalidPath indicates a file path outside of the working tree
	ErrInvalidPath = errors.New("invalid path in working tree")

	// ErrNotSupported is returned by history operations that are declared but not implemented
	ErrNotSupported = errors.New("operation not supported")
)
