// Copyright © 2018 One Concern

package storage

import (
	"context"
	"io"
)

const (
	// NoOverWrite makes Put fail when the key exists already
	NoOverWrite = true

	// OverWrite lets Put replace an existing key
	OverWrite = false
)

// Store implementations know how to write archives to a K/V model.
//
// Typically this is something file system-like. Implementations of this interface are assumed to be fairly simple.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, source io.Reader, exclusive bool) error
	Keys(context.Context) ([]string, error)
	KeysPrefix(ctx context.Context, prefix string) ([]string, error)
}

// PipeIO copies a reader to a writer, using the fastest path available
func PipeIO(writer io.Writer, reader io.Reader) (n int64, err error) {
	if wt, ok := reader.(io.WriterTo); ok {
		return wt.WriteTo(writer)
	}
	if rf, ok := writer.(io.ReaderFrom); ok {
		return rf.ReadFrom(reader)
	}
	return io.Copy(writer, reader)
}
