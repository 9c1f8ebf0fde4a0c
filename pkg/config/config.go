// Copyright © 2018 One Concern

// Package config describes the configuration stored within a repository.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oneconcern/darkpan/pkg/model"
	"gopkg.in/yaml.v2"
)

const (
	// Dir holds the internal state of a repository, relative to its root
	Dir = ".darkpan"

	// FileName of the repository configuration, within Dir
	FileName = "config.yaml"

	// CurrentVersion of the repository layout
	CurrentVersion = 1

	// DefaultSource is the public CPAN mirror network
	DefaultSource = "https://www.cpan.org"
)

// Repository configuration
type Repository struct {
	Version       int         `json:"version" yaml:"version"`
	Sources       []string    `json:"sources" yaml:"sources"`
	DefaultAuthor string      `json:"defaultAuthor,omitempty" yaml:"default_author,omitempty"`
	DefaultStack  string      `json:"defaultStack" yaml:"default_stack"`
	Fetch         FetchConfig `json:"fetch" yaml:"fetch"`
	Index         IndexConfig `json:"index" yaml:"index"`
}

// FetchConfig tunes the download of archives and indexes
type FetchConfig struct {
	Retries          uint64        `json:"retries" yaml:"retries"`
	BaseDelay        time.Duration `json:"baseDelay" yaml:"base_delay"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
	UserAgent        string        `json:"userAgent,omitempty" yaml:"user_agent,omitempty"`
	BreakerThreshold int64         `json:"breakerThreshold" yaml:"breaker_threshold"`
}

// IndexConfig tunes the index cache
type IndexConfig struct {
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// File is the location of the configuration of the repository at root
func File(root string) string {
	return filepath.Join(root, Dir, FileName)
}

// Default configuration
func Default() *Repository {
	c := &Repository{}
	c.ApplyDefaults()
	return c
}

// Load reads and validates a repository configuration
func Load(path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Repository
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.expandEnv()
	cfg.ApplyDefaults()

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration
func (c *Repository) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Repository) expandEnv() {
	for i := range c.Sources {
		c.Sources[i] = os.ExpandEnv(c.Sources[i])
	}
	c.DefaultAuthor = os.ExpandEnv(c.DefaultAuthor)
	c.Fetch.UserAgent = os.ExpandEnv(c.Fetch.UserAgent)
}

// ApplyDefaults fills in unset values, and normalizes names
func (c *Repository) ApplyDefaults() {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if c.Sources == nil {
		c.Sources = []string{DefaultSource}
	}
	if c.DefaultStack == "" {
		c.DefaultStack = model.DefaultStackName
	}
	c.DefaultStack = model.NormalizeStackName(c.DefaultStack)
	c.DefaultAuthor = model.NormalizeAuthor(c.DefaultAuthor)
	if c.Fetch.Retries == 0 {
		c.Fetch.Retries = 3
	}
	if c.Fetch.BaseDelay == 0 {
		c.Fetch.BaseDelay = 500 * time.Millisecond
	}
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 10 * time.Minute
	}
	if c.Fetch.BreakerThreshold == 0 {
		c.Fetch.BreakerThreshold = 5
	}
	if c.Index.Concurrency == 0 {
		c.Index.Concurrency = 4
	}
}

// Validate checks the configuration for errors
func (c *Repository) Validate() error {
	if c.Version > CurrentVersion {
		return fmt.Errorf("version %d is not supported (max %d)", c.Version, CurrentVersion)
	}
	if err := model.ValidateStackName(c.DefaultStack); err != nil {
		return fmt.Errorf("default_stack: %w", err)
	}
	if c.DefaultAuthor != "" {
		if _, err := model.DistributionPath(c.DefaultAuthor, "x"); err != nil {
			return fmt.Errorf("default_author: %w", err)
		}
	}
	for _, source := range c.Sources {
		if strings.TrimSpace(source) == "" {
			return fmt.Errorf("sources: empty source")
		}
	}
	if c.Fetch.BaseDelay < 0 || c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch: durations must be positive")
	}
	if c.Index.Concurrency < 0 {
		return fmt.Errorf("index.concurrency must be positive")
	}
	return nil
}
