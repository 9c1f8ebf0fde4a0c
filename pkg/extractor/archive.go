// Copyright © 2018 One Concern

package extractor

import (
	"archive/tar"
	"archive/zip"
	"context"
	"io"
	"os"
	"path"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/oneconcern/darkpan/pkg/extractor/status"
)

type moduleFile struct {
	path    string // relative to the distribution root
	content []byte
}

type archiveContents struct {
	metaJSON []byte
	metaYAML []byte
	modules  []moduleFile
}

// directories never holding indexable modules
var skippedDirs = []string{"t/", "xt/", "inc/", "local/", "perl5/", "fatlib/", "blib/", "examples/", "eg/", "share/"}

func (m *Meta) readArchive(ctx context.Context, archive string) (*archiveContents, error) {
	lower := strings.ToLower(archive)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return m.readTar(ctx, archive, true)
	case strings.HasSuffix(lower, ".tar"):
		return m.readTar(ctx, archive, false)
	case strings.HasSuffix(lower, ".zip"):
		return m.readZip(ctx, archive)
	default:
		return nil, status.ErrUnsupportedArchive.WrapMessage("%s", path.Base(archive))
	}
}

func (m *Meta) readTar(ctx context.Context, archive string, compressed bool) (*archiveContents, error) {
	file, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = file.Close()
	}()

	var rdr io.Reader = file
	if compressed {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, status.ErrCorruptedArchive.WrapMessage("%s", path.Base(archive)).Wrap(err)
		}
		defer func() {
			_ = gz.Close()
		}()
		rdr = gz
	}

	contents := &archiveContents{}
	tr := tar.NewReader(rdr)
	for {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, status.ErrCorruptedArchive.WrapMessage("%s", path.Base(archive)).Wrap(err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if err = m.collect(contents, hdr.Name, hdr.Size, tr); err != nil {
			return nil, status.ErrCorruptedArchive.WrapMessage("%s", path.Base(archive)).Wrap(err)
		}
	}
	return contents, nil
}

func (m *Meta) readZip(ctx context.Context, archive string) (*archiveContents, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, status.ErrCorruptedArchive.WrapMessage("%s", path.Base(archive)).Wrap(err)
	}
	defer func() {
		_ = zr.Close()
	}()

	contents := &archiveContents{}
	for _, f := range zr.File {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		err = func() error {
			rc, err := f.Open()
			if err != nil {
				return err
			}
			defer func() {
				_ = rc.Close()
			}()
			return m.collect(contents, f.Name, int64(f.UncompressedSize64), rc)
		}()
		if err != nil {
			return nil, status.ErrCorruptedArchive.WrapMessage("%s", path.Base(archive)).Wrap(err)
		}
	}
	return contents, nil
}

// collect keeps the files we are interested in
func (m *Meta) collect(contents *archiveContents, name string, size int64, rdr io.Reader) error {
	rel := relativeToRoot(name)
	isModule := strings.HasSuffix(rel, ".pm") && !isSkipped(rel)
	isMeta := rel == "META.json" || rel == "META.yml"
	if !isModule && !isMeta {
		return nil
	}
	if size > m.maxFileSize {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(rdr, m.maxFileSize))
	if err != nil {
		return err
	}
	switch {
	case rel == "META.json":
		contents.metaJSON = data
	case rel == "META.yml":
		contents.metaYAML = data
	default:
		contents.modules = append(contents.modules, moduleFile{path: rel, content: data})
	}
	return nil
}

// relativeToRoot strips the top level directory of the distribution
func relativeToRoot(name string) string {
	name = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(name, `\`, "/")), "/")
	if idx := strings.Index(name, "/"); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func isSkipped(rel string) bool {
	for _, dir := range skippedDirs {
		if strings.HasPrefix(rel, dir) {
			return true
		}
	}
	return false
}
