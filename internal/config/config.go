// Package config loads knowledge-base configuration from .dkb.yaml with
// DKB_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/locchh/dkb/internal/chunk"
	kberrors "github.com/locchh/dkb/internal/errors"
)

// Config is the complete dkb configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Chunking ChunkingConfig `yaml:"chunking" json:"chunking"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Import   ImportConfig   `yaml:"import" json:"import"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// StoreConfig configures the backing store.
type StoreConfig struct {
	// Path is the knowledge-base file. Empty means memory-backed.
	Path string `yaml:"path" json:"path"`
}

// ChunkingConfig sets the default chunking parameters. Applied when a
// command enables chunking without spelling out its own options.
type ChunkingConfig struct {
	Strategy string `yaml:"strategy" json:"strategy"`
	Size     int    `yaml:"size" json:"size"`
	Overlap  int    `yaml:"overlap" json:"overlap"`
	// Separator is only used by the separator strategy.
	Separator string `yaml:"separator" json:"separator"`
	MinSize   int    `yaml:"min_size" json:"min_size"`
	MaxSize   int    `yaml:"max_size" json:"max_size"`
}

// Options converts the configured defaults into chunker options.
func (c ChunkingConfig) Options() chunk.Options {
	return chunk.Options{
		Strategy:  chunk.Strategy(c.Strategy),
		Size:      c.Size,
		Overlap:   c.Overlap,
		Separator: c.Separator,
		MinSize:   c.MinSize,
		MaxSize:   c.MaxSize,
	}
}

// SearchConfig sets search defaults.
type SearchConfig struct {
	// DefaultLimit caps search results when no explicit limit is given.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	// MaxTokens is the default result token budget. Zero disables.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`
	// Order is the default ordering: relevance, date, or path.
	Order string `yaml:"order" json:"order"`
}

// ImportConfig sets folder-import defaults.
type ImportConfig struct {
	// Pattern filters imported paths. Empty imports everything.
	Pattern string `yaml:"pattern" json:"pattern"`
	// Workers bounds the parallel staging workers.
	Workers int `yaml:"workers" json:"workers"`
	// WatchDebounce coalesces filesystem events in watch mode.
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// ServerConfig configures the MCP server and logging.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// New returns the configuration defaults.
func New() *Config {
	return &Config{
		Version: 1,
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Chunking: ChunkingConfig{
			Strategy: string(chunk.StrategyHeadings),
			Size:     chunk.DefaultChunkSize,
			Overlap:  chunk.DefaultChunkOverlap,
		},
		Search: SearchConfig{
			DefaultLimit: 10,
			MaxTokens:    0,
			Order:        "relevance",
		},
		Import: ImportConfig{
			Workers:       runtime.NumCPU(),
			WatchDebounce: "500ms",
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// defaultStorePath places the knowledge base under the user home.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".dkb", "kb.db")
	}
	return filepath.Join(home, ".dkb", "kb.db")
}

// Load builds the effective configuration for a directory, in order of
// increasing precedence:
//  1. Hardcoded defaults
//  2. Project config (.dkb.yaml or .dkb.yml in dir)
//  3. Environment variables (DKB_*)
func Load(dir string) (*Config, error) {
	cfg := New()
	if err := cfg.loadFromDir(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads an explicit configuration file, still applying env
// overrides and validation. A missing file is an error here, unlike the
// optional project config.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := os.Stat(path); err != nil {
		return nil, kberrors.New(kberrors.ErrCodeConfigNotFound,
			fmt.Sprintf("config file not found: %s", path), err)
	}
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromDir(dir string) error {
	for _, name := range []string{".dkb.yaml", ".dkb.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	// No config file is fine.
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return kberrors.IOFailure("read config "+path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return kberrors.New(kberrors.ErrCodeConfigInvalid,
			fmt.Sprintf("parse config %s", path), err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}

	if other.Chunking.Strategy != "" {
		c.Chunking.Strategy = other.Chunking.Strategy
	}
	if other.Chunking.Size != 0 {
		c.Chunking.Size = other.Chunking.Size
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}
	if other.Chunking.Separator != "" {
		c.Chunking.Separator = other.Chunking.Separator
	}
	if other.Chunking.MinSize != 0 {
		c.Chunking.MinSize = other.Chunking.MinSize
	}
	if other.Chunking.MaxSize != 0 {
		c.Chunking.MaxSize = other.Chunking.MaxSize
	}

	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxTokens != 0 {
		c.Search.MaxTokens = other.Search.MaxTokens
	}
	if other.Search.Order != "" {
		c.Search.Order = other.Search.Order
	}

	if other.Import.Pattern != "" {
		c.Import.Pattern = other.Import.Pattern
	}
	if other.Import.Workers != 0 {
		c.Import.Workers = other.Import.Workers
	}
	if other.Import.WatchDebounce != "" {
		c.Import.WatchDebounce = other.Import.WatchDebounce
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies DKB_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DKB_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("DKB_CHUNK_STRATEGY"); v != "" {
		c.Chunking.Strategy = v
	}
	if v := os.Getenv("DKB_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Chunking.Size = n
		}
	}
	if v := os.Getenv("DKB_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Chunking.Overlap = n
		}
	}
	if v := os.Getenv("DKB_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.DefaultLimit = n
		}
	}
	if v := os.Getenv("DKB_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Search.MaxTokens = n
		}
	}
	if v := os.Getenv("DKB_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// WatchDebounce parses the configured debounce interval.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Import.WatchDebounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// Validate checks the effective configuration.
func (c *Config) Validate() error {
	if err := c.Chunking.Options().Validate(); err != nil {
		return err
	}

	if c.Search.DefaultLimit < 0 {
		return kberrors.InvalidConfig(
			fmt.Sprintf("search.default_limit must not be negative, got %d", c.Search.DefaultLimit))
	}
	if c.Search.MaxTokens < 0 {
		return kberrors.InvalidConfig(
			fmt.Sprintf("search.max_tokens must not be negative, got %d", c.Search.MaxTokens))
	}
	switch c.Search.Order {
	case "relevance", "date", "path":
	default:
		return kberrors.InvalidConfig(
			fmt.Sprintf("search.order must be relevance, date, or path, got %s", c.Search.Order))
	}

	if c.Import.Workers < 0 {
		return kberrors.InvalidConfig(
			fmt.Sprintf("import.workers must not be negative, got %d", c.Import.Workers))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return kberrors.InvalidConfig(
			fmt.Sprintf("server.log_level must be debug, info, warn, or error, got %s", c.Server.LogLevel))
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return kberrors.Internal("marshal config", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return kberrors.IOFailure("write config "+path, err)
	}
	return nil
}
