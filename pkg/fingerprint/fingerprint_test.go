package fingerprint

import (
	"bytes"
	"crypto/md5" // #nosec
	"testing"
	"time"

	blake2b "github.com/minio/blake2b-simd"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := []byte("a distribution archive, more or less")
	require.NoError(t, afero.WriteFile(fs, "/src/Foo-1.0.tar.gz", content, 0600))
	mtime := time.Date(2019, 3, 1, 10, 0, 0, 5000, time.UTC)
	require.NoError(t, fs.Chtimes("/src/Foo-1.0.tar.gz", mtime, mtime))

	weak := md5.Sum(content) // #nosec
	strong := blake2b.Sum256(content)

	// a tiny buffer exercises several reads
	id, err := New(FileSystem(fs), BufferSize(7)).Process("/src/Foo-1.0.tar.gz")
	require.NoError(t, err)

	assert.Equal(t, int64(len(content)), id.Size)
	assert.Equal(t, mtime.Truncate(time.Second), id.Mtime)
	assert.Equal(t, model.Digest(weak[:]).String(), id.DigestWeak.String())
	assert.Equal(t, model.Digest(strong[:]).String(), id.DigestStrong.String())

	var d model.Distribution
	id.Apply(&d)
	assert.True(t, id.Matches(d))

	d.DigestStrong = model.Digest(weak[:])
	assert.False(t, id.Matches(d))
}

func TestProcessErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/src", 0700))

	m := New(FileSystem(fs))
	_, err := m.Process("/src/missing.tar.gz")
	require.Error(t, err)

	_, err = m.Process("/src")
	require.Error(t, err)
}

func TestProcessReader(t *testing.T) {
	content := []byte("the same bytes, streamed from an archive store")
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "Bar-2.1.tar.gz", content, 0600))

	m := New(FileSystem(fs))
	fromFile, err := m.Process("Bar-2.1.tar.gz")
	require.NoError(t, err)
	fromStream, err := m.ProcessReader(bytes.NewReader(content))
	require.NoError(t, err)

	assert.True(t, fromStream.Mtime.IsZero())
	var d model.Distribution
	fromFile.Apply(&d)
	assert.True(t, fromStream.Matches(d))
}
