// Copyright © 2018 One Concern

// Package status holds the errors of archive stores.
//
// They live apart from pkg/storage so that store implementations and their callers
// may share them without importing each other.
package status

import "github.com/oneconcern/darkpan/pkg/errors"

var (
	// ErrNotExists is returned when no archive is stored under a key
	ErrNotExists = errors.New("archive not stored")

	// ErrExists is returned by an exclusive put on a key already taken: archives are never overwritten
	ErrExists = errors.New("archive stored already")

	// ErrInvalidResource is returned for keys escaping the store, or otherwise malformed
	ErrInvalidResource = errors.New("invalid archive key")

	// ErrWrite is returned when an archive could not be written in full
	ErrWrite = errors.New("cannot write archive")
)
