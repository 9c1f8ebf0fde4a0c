// Copyright © 2018 One Concern

// Package storage provides interface to handle the archive store.
//
// The archive store holds distribution archives under their repository path.
// It is append-only: archives are added, never rewritten.
//
// This package supports the following backends:
//   - local file system (any afero.Fs)
package storage
