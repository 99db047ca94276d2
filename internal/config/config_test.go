package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kberrors "github.com/locchh/dkb/internal/errors"
)

func TestNew_DefaultsValidate(t *testing.T) {
	cfg := New()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "headings", cfg.Chunking.Strategy)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, "relevance", cfg.Search.Order)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, New().Search, cfg.Search)
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := "store:\n  path: custom.db\nchunking:\n  strategy: tokens\n  size: 256\n  overlap: 32\nsearch:\n  default_limit: 5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dkb.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "custom.db", cfg.Store.Path)
	assert.Equal(t, "tokens", cfg.Chunking.Strategy)
	assert.Equal(t, 256, cfg.Chunking.Size)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)

	// Untouched sections keep their defaults.
	assert.Equal(t, "relevance", cfg.Search.Order)
	assert.Equal(t, "info", cfg.Server.LogLevel)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dkb.yaml"),
		[]byte("search:\n  default_limit: 5\n"), 0o644))
	t.Setenv("DKB_SEARCH_LIMIT", "25")
	t.Setenv("DKB_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Search.DefaultLimit)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dkb.yaml"),
		[]byte("search: [not, a, map]\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeConfigInvalid, kberrors.GetCode(err))
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeConfigNotFound, kberrors.GetCode(err))
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap not below size", func(c *Config) {
			c.Chunking.Strategy = "tokens"
			c.Chunking.Size = 10
			c.Chunking.Overlap = 10
		}},
		{"unknown strategy", func(c *Config) { c.Chunking.Strategy = "sentences" }},
		{"negative limit", func(c *Config) { c.Search.DefaultLimit = -1 }},
		{"unknown order", func(c *Config) { c.Search.Order = "shuffled" }},
		{"unknown log level", func(c *Config) { c.Server.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWatchDebounce(t *testing.T) {
	cfg := New()
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce())

	cfg.Import.WatchDebounce = "2s"
	assert.Equal(t, 2*time.Second, cfg.WatchDebounce())

	cfg.Import.WatchDebounce = "bogus"
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce())
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	cfg := New()
	cfg.Store.Path = "kb.db"
	cfg.Search.DefaultLimit = 7

	path := filepath.Join(t.TempDir(), "conf.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "kb.db", loaded.Store.Path)
	assert.Equal(t, 7, loaded.Search.DefaultLimit)
}
