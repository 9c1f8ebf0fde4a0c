package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultStackName is the name of the stack created when a repository is initialized
const DefaultStackName = "master"

var (
	spacesRe    = regexp.MustCompile(`\s+`)
	stackNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
)

// Stack is a named, independently versioned view of the registered packages
type Stack struct {
	Name       string            `json:"name" yaml:"name"`
	IsDefault  bool              `json:"default" yaml:"default"`
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
	CreatedAt  time.Time         `json:"createdAt" yaml:"createdAt"`
	_          struct{}
}

// Property returns a stack property, or the empty string
func (s Stack) Property(key string) string {
	if s.Properties == nil {
		return ""
	}
	return s.Properties[NormalizePropertyKey(key)]
}

// Registration pins a package version onto a stack
type Registration struct {
	Stack        string    `json:"stack" yaml:"stack"`
	Package      Package   `json:"package" yaml:"package"`
	RegisteredAt time.Time `json:"registeredAt" yaml:"registeredAt"`
}

// NormalizeStackName canonicalizes the case and white space of a stack name.
//
// Surrounding blanks are dropped and inner runs of blanks become a single dash,
// so "  My Stack " and "my-stack" designate the same stack.
func NormalizeStackName(name string) string {
	return spacesRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// NormalizePropertyKey canonicalizes a stack property key
func NormalizePropertyKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// ValidateStackName checks that a normalized stack name may be used as a branch name
func ValidateStackName(name string) error {
	if name == "" {
		return fmt.Errorf("empty field: stack name is empty")
	}
	if !stackNameRe.MatchString(name) || strings.Contains(name, "..") || strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("invalid name: stack name %q contains unsupported characters", name)
	}
	return nil
}
