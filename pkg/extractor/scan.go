// Copyright © 2018 One Concern

package extractor

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/oneconcern/darkpan/pkg/model"
)

var (
	packageRe = regexp.MustCompile(`^\s*package\s+([A-Za-z_][\w]*(?:::\w+)*)(?:\s+(v?[\d._]+))?\s*[;{]`)
	versionRe = regexp.MustCompile(`^[^#]*\$(?:[\w:]*::)?VERSION\s*=\s*(?:qv\(\s*)?['"]?(v?[\d._]+)['"]?`)
	podRe     = regexp.MustCompile(`^=[a-zA-Z]`)
)

// scanModules finds the packages declared by the modules of a distribution.
//
// A package takes its version from the package statement, or from the first $VERSION
// assignment of its file. Private packages, with a name part starting with an underscore, are not reported.
func scanModules(modules []moduleFile, meta *distMeta) []model.PackageSpec {
	seen := make(map[string]bool)
	var res []model.PackageSpec
	for _, mod := range modules {
		if !meta.isIndexable(mod.path, "") {
			continue
		}
		for _, spec := range scanModule(mod.content) {
			if seen[spec.Name] || !meta.isIndexable(mod.path, spec.Name) || isPrivate(spec.Name) {
				continue
			}
			seen[spec.Name] = true
			res = append(res, spec)
		}
	}
	return res
}

func scanModule(content []byte) []model.PackageSpec {
	var (
		specs       []model.PackageSpec
		fileVersion string
		inPod       bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if podRe.MatchString(line) {
			inPod = !strings.HasPrefix(line, "=cut")
			continue
		}
		if inPod {
			continue
		}
		if strings.HasPrefix(line, "__END__") || strings.HasPrefix(line, "__DATA__") {
			break
		}
		if m := packageRe.FindStringSubmatch(line); m != nil {
			specs = append(specs, model.PackageSpec{Name: m[1], Version: m[2]})
			continue
		}
		if m := versionRe.FindStringSubmatch(line); m != nil && fileVersion == "" {
			fileVersion = m[1]
		}
	}
	for i := range specs {
		if specs[i].Version == "" {
			specs[i].Version = fileVersion
		}
		specs[i].Version = normalizeVersion(specs[i].Version, undefVersion)
	}
	return specs
}

func isPrivate(name string) bool {
	for _, part := range strings.Split(name, "::") {
		if strings.HasPrefix(part, "_") {
			return true
		}
	}
	return name == "main" || name == "DB"
}
