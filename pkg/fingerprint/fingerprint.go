// Package fingerprint computes the content identity of archive files:
// size, modification time and two digests of the raw bytes.
package fingerprint

import (
	"crypto/md5" // #nosec: the weak digest is a checksum, not a security feature
	"fmt"
	"io"
	"time"

	units "github.com/docker/go-units"
	blake2b "github.com/minio/blake2b-simd"
	"github.com/oneconcern/darkpan/pkg/model"
	"github.com/spf13/afero"
)

// Identity of an archive file
type Identity struct {
	Path         string
	Size         int64
	Mtime        time.Time
	DigestWeak   model.Digest // MD5
	DigestStrong model.Digest // BLAKE2b-256
}

// Option for the Maker
type Option func(*Maker)

// BufferSize sets the size of the read buffer
func BufferSize(sz int64) Option {
	return func(m *Maker) {
		m.bufferSize = int(sz)
	}
}

// FileSystem sets the file system to read archives from (defaults to the OS)
func FileSystem(fs afero.Fs) Option {
	return func(m *Maker) {
		m.fs = fs
	}
}

// New fingerprint maker
func New(opts ...Option) *Maker {
	m := &Maker{
		bufferSize: int(units.MiB),
		fs:         afero.NewOsFs(),
	}

	for _, apply := range opts {
		apply(m)
	}
	return m
}

// Maker computes identities, reading the file only once
type Maker struct {
	bufferSize int
	fs         afero.Fs
}

// Process a file and yield its identity
func (m *Maker) Process(pth string) (Identity, error) {
	f, err := m.fs.Open(pth)
	if err != nil {
		return Identity{}, err
	}
	defer func() { _ = f.Close() }()

	fi, err := f.Stat()
	if err != nil {
		return Identity{}, err
	}
	if fi.IsDir() {
		return Identity{}, fmt.Errorf("%s is a directory", pth)
	}

	id, err := m.ProcessReader(f)
	if err != nil {
		return Identity{}, fmt.Errorf("computing digests for %s: %w", pth, err)
	}
	id.Path = pth
	id.Mtime = fi.ModTime().UTC().Truncate(time.Second)
	return id, nil
}

// ProcessReader computes the size and digests of a stream. The modification time is left empty.
func (m *Maker) ProcessReader(rdr io.Reader) (Identity, error) {
	weak := md5.New() // #nosec
	strong := blake2b.New256()
	n, err := io.CopyBuffer(io.MultiWriter(weak, strong), rdr, make([]byte, m.bufferSize))
	if err != nil {
		return Identity{}, err
	}

	return Identity{
		Size:         n,
		DigestWeak:   weak.Sum(nil),
		DigestStrong: strong.Sum(nil),
	}, nil
}

// Apply copies the identity onto a distribution record
func (i Identity) Apply(d *model.Distribution) {
	d.Mtime = i.Mtime
	d.Size = i.Size
	d.DigestWeak = i.DigestWeak
	d.DigestStrong = i.DigestStrong
}

// Matches tells if a distribution record has the same content identity
func (i Identity) Matches(d model.Distribution) bool {
	return i.Size == d.Size &&
		i.DigestWeak.String() == d.DigestWeak.String() &&
		i.DigestStrong.String() == d.DigestStrong.String()
}
