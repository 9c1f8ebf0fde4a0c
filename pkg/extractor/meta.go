// Copyright © 2018 One Concern

package extractor

import (
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/darkpan/pkg/extractor/status"
	"github.com/oneconcern/darkpan/pkg/model"
	"gopkg.in/yaml.v2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// distMeta is what matters to us in the distribution metadata
type distMeta struct {
	name              string
	version           string
	provides          []model.PackageSpec
	requires          []model.Prerequisite
	noIndexDirs       []string
	noIndexFiles      []string
	noIndexPackages   []string
	noIndexNamespaces []string
}

// metaVersion accepts versions written as strings or as bare numbers, keeping their text
type metaVersion string

func (v *metaVersion) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*v = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*v = metaVersion(str)
		return nil
	}
	*v = metaVersion(s)
	return nil
}

type metaProvide struct {
	File    string      `json:"file" yaml:"file"`
	Version metaVersion `json:"version" yaml:"version"`
}

type metaNoIndex struct {
	Directory []string `json:"directory" yaml:"directory"`
	File      []string `json:"file" yaml:"file"`
	Package   []string `json:"package" yaml:"package"`
	Namespace []string `json:"namespace" yaml:"namespace"`
}

// META.json, CPAN::Meta::Spec version 2
type metaJSON struct {
	Name     string                                       `json:"name"`
	Version  metaVersion                                  `json:"version"`
	Provides map[string]metaProvide                       `json:"provides"`
	Prereqs  map[string]map[string]map[string]metaVersion `json:"prereqs"`
	NoIndex  metaNoIndex                                  `json:"no_index"`
}

// META.yml, CPAN::Meta::Spec version 1.x
type metaYAML struct {
	Name              string                 `yaml:"name"`
	Version           metaVersion            `yaml:"version"`
	Provides          map[string]metaProvide `yaml:"provides"`
	Requires          map[string]metaVersion `yaml:"requires"`
	BuildRequires     map[string]metaVersion `yaml:"build_requires"`
	TestRequires      map[string]metaVersion `yaml:"test_requires"`
	ConfigureRequires map[string]metaVersion `yaml:"configure_requires"`
	NoIndex           metaNoIndex            `yaml:"no_index"`
	PrivateNoIndex    metaNoIndex            `yaml:"private"`
}

func parseMetaJSON(data []byte) (*distMeta, error) {
	var m metaJSON
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.ErrInvalidMeta.WrapMessage("META.json").Wrap(err)
	}
	d := &distMeta{
		name:              m.Name,
		version:           string(m.Version),
		provides:          provides(m.Provides),
		noIndexDirs:       m.NoIndex.Directory,
		noIndexFiles:      m.NoIndex.File,
		noIndexPackages:   m.NoIndex.Package,
		noIndexNamespaces: m.NoIndex.Namespace,
	}
	for phase, relations := range m.Prereqs {
		// recommends and suggests are optional
		d.requires = append(d.requires, prerequisites(phase, relations["requires"])...)
	}
	return d, nil
}

func parseMetaYAML(data []byte) (*distMeta, error) {
	var m metaYAML
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, status.ErrInvalidMeta.WrapMessage("META.yml").Wrap(err)
	}
	d := &distMeta{
		name:              m.Name,
		version:           string(m.Version),
		provides:          provides(m.Provides),
		noIndexDirs:       append(m.NoIndex.Directory, m.PrivateNoIndex.Directory...),
		noIndexFiles:      append(m.NoIndex.File, m.PrivateNoIndex.File...),
		noIndexPackages:   append(m.NoIndex.Package, m.PrivateNoIndex.Package...),
		noIndexNamespaces: append(m.NoIndex.Namespace, m.PrivateNoIndex.Namespace...),
	}
	d.requires = append(d.requires, prerequisites("runtime", m.Requires)...)
	d.requires = append(d.requires, prerequisites("build", m.BuildRequires)...)
	d.requires = append(d.requires, prerequisites("test", m.TestRequires)...)
	d.requires = append(d.requires, prerequisites("configure", m.ConfigureRequires)...)
	return d, nil
}

func provides(in map[string]metaProvide) []model.PackageSpec {
	res := make([]model.PackageSpec, 0, len(in))
	for name, p := range in {
		res = append(res, model.PackageSpec{Name: name, Version: normalizeVersion(string(p.Version), undefVersion)})
	}
	sortSpecs(res)
	return res
}

func prerequisites(phase string, in map[string]metaVersion) []model.Prerequisite {
	res := make([]model.Prerequisite, 0, len(in))
	for name, v := range in {
		res = append(res, model.Prerequisite{
			PackageSpec: model.PackageSpec{Name: name, Version: normalizeVersion(string(v), "0")},
			Phase:       phase,
		})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// undefVersion is how CPAN indexes render a package without version
const undefVersion = "undef"

func normalizeVersion(v, missing string) string {
	v = strings.Trim(strings.TrimSpace(v), `'"`)
	if v == "" || v == undefVersion || v == "~" {
		return missing
	}
	return v
}
