// Copyright © 2018 One Concern

package index

import (
	"strings"

	"github.com/oneconcern/darkpan/pkg/model"
)

// Entry of a package index: a package, and the distribution providing it on some source
type Entry struct {
	model.PackageSpec `yaml:",inline"`
	Distribution      string `json:"distribution" yaml:"distribution"` // author-prefixed path
	Source            string `json:"source" yaml:"source"`             // base URL of the repository
}

// URL of the distribution archive providing the package
func (e Entry) URL() string {
	return strings.TrimRight(e.Source, "/") + "/" + model.ArchiveKey(e.Distribution)
}
