package model

import (
	"regexp"
	"strconv"
	"strings"

	version "github.com/hashicorp/go-version"
)

var (
	decimalVersionRe = regexp.MustCompile(`^(\d+)(?:\.(\d*))?(?:_(\d+))?$`)
	dottedVersionRe  = regexp.MustCompile(`^v?(\d+(?:\.\d+)*)(?:_(\d+))?$`)
)

// ParseVersion interprets a package version as a comparable semantic version.
//
// Decimal versions (1.05) are split in groups of 3 fractional digits (1.50.0), dotted
// versions (v1.2.3 or 1.2.3) are kept as is. Dev releases (1.02_01) are folded
// into the number and marked as pre-releases, so they sort right below the same
// regular release.
func ParseVersion(v string) (*version.Version, error) {
	v = strings.TrimSpace(v)
	if m := dottedVersionRe.FindStringSubmatch(v); m != nil && (strings.HasPrefix(v, "v") || strings.Count(m[1], ".") > 1) {
		normal := m[1]
		if m[2] != "" {
			normal += "-dev." + m[2]
		}
		return version.NewVersion(normal)
	}

	m := decimalVersionRe.FindStringSubmatch(v)
	if m == nil {
		return version.NewVersion(v) // let the library report the error
	}
	fraction := m[2] + m[3]
	for len(fraction)%3 != 0 {
		fraction += "0"
	}
	segments := []string{m[1]}
	for i := 0; i < len(fraction); i += 3 {
		n, _ := strconv.Atoi(fraction[i : i+3])
		segments = append(segments, strconv.Itoa(n))
	}
	for len(segments) < 3 {
		segments = append(segments, "0")
	}
	normal := strings.Join(segments, ".")
	if m[3] != "" {
		normal += "-dev"
	}
	return version.NewVersion(normal)
}

// CompareVersions defines a total order on package versions: it returns -1, 0 or 1.
//
// Unparsable versions sort below any valid version and compare lexically with each other.
// Versions that are equivalent (1.0 and 1.000) are ordered lexically on their spelling,
// so 0 is returned only for identical strings.
func CompareVersions(a, b string) int {
	if c := compareVersions(a, b); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

// VersionAtLeast tells if version have satisfies the minimum version want.
// An empty or zero minimum is always satisfied.
func VersionAtLeast(have, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" || want == "0" {
		return true
	}
	return compareVersions(have, want) >= 0
}

func compareVersions(a, b string) int {
	va, ea := ParseVersion(a)
	vb, eb := ParseVersion(b)
	switch {
	case ea != nil && eb != nil:
		return strings.Compare(a, b)
	case ea != nil:
		return -1
	case eb != nil:
		return 1
	default:
		return va.Compare(vb)
	}
}
