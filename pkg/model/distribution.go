package model

import (
	"encoding/hex"
	"path"
	"time"

	packageurl "github.com/package-url/packageurl-go"
)

// LocalSource is the origin of distributions added from the local filesystem
const LocalSource = "LOCAL"

// Digest is a binary content hash, rendered as hex
type Digest []byte

func (d Digest) String() string {
	return hex.EncodeToString(d)
}

// MarshalText renders the digest as hex
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText reads an hex digest
func (d *Digest) UnmarshalText(b []byte) error {
	v, err := hex.DecodeString(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Distribution describes an archive stored in the repository, with the packages it provides and requires
type Distribution struct {
	Path          string         `json:"path" yaml:"path"`     // Repository-relative, author-prefixed path
	Source        string         `json:"source" yaml:"source"` // Origin URL or LOCAL
	Mtime         time.Time      `json:"mtime" yaml:"mtime"`
	Size          int64          `json:"size" yaml:"size"`
	DigestWeak    Digest         `json:"md5" yaml:"md5"`
	DigestStrong  Digest         `json:"blake2b" yaml:"blake2b"`
	Packages      []Package      `json:"packages,omitempty" yaml:"packages,omitempty"`
	Prerequisites []Prerequisite `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	_             struct{}
}

// Author id of the distribution
func (d Distribution) Author() string {
	author, _, err := SplitDistributionPath(d.Path)
	if err != nil {
		return ""
	}
	return author
}

// Archive is the base name of the archive file
func (d Distribution) Archive() string {
	return path.Base(d.Path)
}

// IsLocal tells if the distribution was added from the local filesystem
func (d Distribution) IsLocal() bool {
	return d.Source == "" || d.Source == LocalSource
}

// NameAndVersion of the distribution, as inferred from its archive name
func (d Distribution) NameAndVersion() (string, string) {
	name, version, _ := ParseDistName(d.Archive())
	return name, version
}

// PURL yields the package URL of this distribution, e.g. pkg:cpan/JEFF/Foo-Bar@1.0
func (d Distribution) PURL() string {
	name, version := d.NameAndVersion()
	if name == "" {
		name = d.Archive()
	}
	var qualifiers packageurl.Qualifiers
	if !d.IsLocal() {
		qualifiers = packageurl.QualifiersFromMap(map[string]string{"repository_url": d.Source})
	}
	return packageurl.NewPackageURL("cpan", d.Author(), name, version, qualifiers, "").ToString()
}

// Provides tells if the distribution provides a package with this name
func (d Distribution) Provides(name string) (Package, bool) {
	for _, p := range d.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}
