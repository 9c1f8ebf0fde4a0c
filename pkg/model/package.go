package model

import (
	"fmt"
	"sort"
)

// PackageSpec is a package name with a version
type PackageSpec struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

func (p PackageSpec) String() string {
	if p.Version == "" {
		return p.Name
	}
	return fmt.Sprintf("%s@%s", p.Name, p.Version)
}

// Package provided by a distribution
type Package struct {
	PackageSpec  `yaml:",inline"`
	Distribution string `json:"distribution" yaml:"distribution"` // path of the owning distribution
}

// Prerequisite of a distribution. The required package may not exist in the repository.
type Prerequisite struct {
	PackageSpec `yaml:",inline"`
	Phase       string `json:"phase,omitempty" yaml:"phase,omitempty"`
}

// Packages is a sortable collection of packages
type Packages []Package

func (p Packages) Len() int      { return len(p) }
func (p Packages) Swap(i, j int) { p[i], p[j] = p[j], p[i] }
func (p Packages) Less(i, j int) bool {
	if p[i].Name != p[j].Name {
		return p[i].Name < p[j].Name
	}
	if c := CompareVersions(p[i].Version, p[j].Version); c != 0 {
		return c < 0
	}
	return p[i].Distribution < p[j].Distribution
}

// Latest returns the package with the highest version, or false when empty
func (p Packages) Latest() (Package, bool) {
	if len(p) == 0 {
		return Package{}, false
	}
	latest := p[0]
	for _, pkg := range p[1:] {
		c := CompareVersions(pkg.Version, latest.Version)
		if c > 0 || c == 0 && pkg.Distribution > latest.Distribution {
			latest = pkg
		}
	}
	return latest, true
}

// Sorted returns a copy sorted by name and version
func (p Packages) Sorted() Packages {
	cp := make(Packages, len(p))
	copy(cp, p)
	sort.Sort(cp)
	return cp
}
