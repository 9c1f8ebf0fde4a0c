// Package status declares the errors returned by repository operations.
//
// Errors from the underlying stores are translated into these, and remain available in the error chain.
package status

import "github.com/oneconcern/darkpan/pkg/errors"

var (
	// ErrInvalidInput indicates a missing or unreadable file, or a malformed argument
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates that a distribution path or a stack name is already taken
	ErrConflict = errors.New("conflict")

	// ErrNotFound indicates a reference to a missing stack, branch, distribution or package
	ErrNotFound = errors.New("not found")

	// ErrConsistencyViolation indicates a corrupted repository, such as a broken default stack invariant.
	// It requires an operator: it is never repaired automatically.
	ErrConsistencyViolation = errors.New("repository consistency violation")

	// ErrPartialIngestFailure indicates that a distribution was recorded in metadata, but its archive
	// could not be placed in the archive store
	ErrPartialIngestFailure = errors.New("partial ingest failure")

	// ErrAlreadyInitialized indicates an attempt to initialize an existing repository
	ErrAlreadyInitialized = errors.New("repository already initialized")

	// ErrNotInitialized indicates that there is no repository at the location
	ErrNotInitialized = errors.New("repository not initialized")
)
