// Package status declares error constants returned by the metadata store.
package status

import "github.com/oneconcern/darkpan/pkg/errors"

var (
	// ErrNotFound indicates that the requested record does not exist
	ErrNotFound = errors.New("not found")

	// ErrExists indicates that a record already exists under the same key
	ErrExists = errors.New("exists already")

	// ErrNameRequired indicates that a record was given an empty name or path
	ErrNameRequired = errors.New("name is required")

	// ErrDefaultStack indicates an operation that would break the unique default stack
	ErrDefaultStack = errors.New("operation conflicts with the default stack")

	// ErrNotInitialized indicates that the store has not been initialized
	ErrNotInitialized = errors.New("metadata store is not initialized")

	// ErrCorrupted indicates that a stored record could not be decoded
	ErrCorrupted = errors.New("corrupted metadata record")
)
