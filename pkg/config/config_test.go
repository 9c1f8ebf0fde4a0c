// Copyright © 2018 One Concern

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSaveLoad(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Sources = []string{"https://cpan.example.com", "/srv/minicpan"}
	cfg.DefaultAuthor = "jeff"
	require.NoError(t, cfg.Save(File(root)))

	loaded, err := Load(File(root))
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, loaded.Version)
	assert.Equal(t, []string{"https://cpan.example.com", "/srv/minicpan"}, loaded.Sources)
	assert.Equal(t, "master", loaded.DefaultStack)
	assert.Equal(t, "JEFF", loaded.DefaultAuthor)
	assert.Equal(t, 500*time.Millisecond, loaded.Fetch.BaseDelay)
	assert.Equal(t, uint64(3), loaded.Fetch.Retries)
}

func TestLoad(t *testing.T) {
	t.Setenv("DARKPAN_TEST_MIRROR", "https://mirror.example.com")

	for _, toPin := range []struct {
		name    string
		content string
		check   func(*testing.T, *Repository)
		wantErr bool
	}{
		{
			name:    "defaults",
			content: "{}\n",
			check: func(t *testing.T, c *Repository) {
				assert.Equal(t, []string{DefaultSource}, c.Sources)
				assert.Equal(t, 4, c.Index.Concurrency)
			},
		},
		{
			name: "expand env and durations",
			content: `sources:
  - ${DARKPAN_TEST_MIRROR}
default_stack: "  Prod Stack "
fetch:
  base_delay: 2s
  retries: 7
`,
			check: func(t *testing.T, c *Repository) {
				assert.Equal(t, []string{"https://mirror.example.com"}, c.Sources)
				assert.Equal(t, "prod-stack", c.DefaultStack)
				assert.Equal(t, 2*time.Second, c.Fetch.BaseDelay)
				assert.Equal(t, uint64(7), c.Fetch.Retries)
			},
		},
		{name: "future version", content: "version: 99\n", wantErr: true},
		{name: "bad stack", content: "default_stack: 'a/b'\n", wantErr: true},
		{name: "bad author", content: "default_author: 'a b'\n", wantErr: true},
		{name: "bad yaml", content: "sources: [\n", wantErr: true},
	} {
		fixture := toPin
		t.Run(fixture.name, func(t *testing.T) {
			pth := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(pth, []byte(fixture.content), 0600))
			cfg, err := Load(pth)
			if fixture.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			fixture.check(t, cfg)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
