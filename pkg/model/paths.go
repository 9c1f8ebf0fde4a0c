package model

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// AuthorsDir is the root of the archive store, as in CPAN mirrors
const AuthorsDir = "authors/id"

var authorRe = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]*$`)

// NormalizeAuthor canonicalizes an author id
func NormalizeAuthor(author string) string {
	return strings.ToUpper(strings.TrimSpace(author))
}

// DistributionPath computes the repository-relative path of an archive
// published by some author: <A>/<AB>/<AUTHOR>/<basename>.
//
// The path is always separated by forward slashes.
func DistributionPath(author, archive string) (string, error) {
	author = NormalizeAuthor(author)
	if !authorRe.MatchString(author) {
		return "", fmt.Errorf("invalid author id %q", author)
	}
	base := path.Base(strings.ReplaceAll(archive, `\`, "/"))
	if base == "" || base == "." || base == "/" {
		return "", fmt.Errorf("invalid archive name %q", archive)
	}
	firstTwo := author
	if len(author) > 2 {
		firstTwo = author[:2]
	}
	return path.Join(author[:1], firstTwo, author, base), nil
}

// SplitDistributionPath yields the author and archive name from a distribution path
func SplitDistributionPath(distPath string) (string, string, error) {
	parts := strings.Split(strings.Trim(distPath, "/"), "/")
	if len(parts) != 4 {
		return "", "", fmt.Errorf("path is invalid: expect distribution path to have 4 parts: %s", distPath)
	}
	author := parts[2]
	expected, err := DistributionPath(author, parts[3])
	if err != nil {
		return "", "", err
	}
	if expected != strings.Join(parts, "/") {
		return "", "", fmt.Errorf("path is invalid: author prefix does not match %q: %s", author, distPath)
	}
	return author, parts[3], nil
}

// ArchiveKey is the location of a distribution archive in the archive store
func ArchiveKey(distPath string) string {
	return path.Join(AuthorsDir, distPath)
}

// DistributionPathFromURLPath extracts the distribution path from an URL path such as
// /CPAN/authors/id/J/JE/JEFF/Foo-1.0.tar.gz.
//
// It returns the prefix before the authors directory, the distribution path and the author.
func DistributionPathFromURLPath(urlPath string) (string, string, string, error) {
	const marker = "/" + AuthorsDir + "/"
	p := "/" + strings.TrimLeft(urlPath, "/")
	idx := strings.LastIndex(p, marker)
	if idx < 0 {
		return "", "", "", fmt.Errorf("path is invalid: no %q in %s", AuthorsDir, urlPath)
	}
	distPath := p[idx+len(marker):]
	author, _, err := SplitDistributionPath(distPath)
	if err != nil {
		return "", "", "", err
	}
	return p[:idx], distPath, author, nil
}
