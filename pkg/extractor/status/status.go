// Package status declares error constants returned by the package extractor.
package status

import "github.com/oneconcern/darkpan/pkg/errors"

var (
	// ErrUnsupportedArchive indicates an archive format that cannot be read
	ErrUnsupportedArchive = errors.New("unsupported archive format")

	// ErrCorruptedArchive indicates an archive that could not be decoded
	ErrCorruptedArchive = errors.New("corrupted archive")

	// ErrInvalidMeta indicates a distribution metadata file that could not be parsed
	ErrInvalidMeta = errors.New("invalid distribution metadata")
)
