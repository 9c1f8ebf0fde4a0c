package model

import (
	"regexp"
	"strings"
)

var (
	archiveExtensions = []string{".tar.gz", ".tar.bz2", ".tar.xz", ".tgz", ".tbz", ".tar", ".zip"}
	distVersionRe     = regexp.MustCompile(`^(.+?)-(v?\d[\w.]*)(-TRIAL\d*)?$`)
)

// TrimArchiveExtension removes the known archive extensions from a file name
func TrimArchiveExtension(archive string) string {
	lower := strings.ToLower(archive)
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(lower, ext) {
			return archive[:len(archive)-len(ext)]
		}
	}
	return archive
}

// IsArchiveName tells if a file name has a supported archive extension
func IsArchiveName(archive string) bool {
	return TrimArchiveExtension(archive) != archive
}

// ParseDistName infers the distribution name and version from an archive name,
// e.g. Foo-Bar-1.02.tar.gz yields ("Foo-Bar", "1.02"). A -TRIAL suffix is ignored.
func ParseDistName(archive string) (string, string, bool) {
	base := TrimArchiveExtension(archive)
	m := distVersionRe.FindStringSubmatch(base)
	if m == nil {
		return base, "", false
	}
	return m[1], m[2], true
}

// MainPackage infers the main package provided by a distribution from its archive name,
// e.g. Foo-Bar-1.02.tar.gz yields Foo::Bar@1.02.
func MainPackage(archive string) (PackageSpec, bool) {
	name, version, ok := ParseDistName(archive)
	if !ok || name == "" {
		return PackageSpec{}, false
	}
	return PackageSpec{Name: strings.ReplaceAll(name, "-", "::"), Version: version}, true
}
