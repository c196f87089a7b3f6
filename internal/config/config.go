package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the top-level configuration for hdlsym
type Config struct {
	// Design selects the design documents and how they are read
	Design DesignConfig `json:"design,omitempty"`

	// Engine tunes exploration
	Engine EngineConfig `json:"engine,omitempty"`

	// Cache controls the solver verdict cache
	Cache CacheConfig `json:"cache,omitempty"`

	// Output controls reports, metrics and timing logs
	Output OutputConfig `json:"output,omitempty"`
}

// DesignConfig lists design documents and front-end options
type DesignConfig struct {
	// Files is a list of glob patterns for design documents (.json, .yaml, .yml)
	Files []string `json:"files,omitempty"`

	// Exclude is a list of glob patterns removed from Files
	Exclude []string `json:"exclude,omitempty"`

	// Top overrides the top module named by the documents
	Top string `json:"top,omitempty"`

	// SystemVerilog treats immediate assert statements as assertions
	SystemVerilog bool `json:"systemVerilog,omitempty"`

	// Strict makes unsupported constructs fatal
	Strict bool `json:"strict,omitempty"`
}

// EngineConfig tunes path enumeration
type EngineConfig struct {
	// ExplosionThreshold is the schedule estimate above which runs are batched
	ExplosionThreshold int64 `json:"explosionThreshold,omitempty"`

	// BatchSize is the number of schedules per batch
	BatchSize int `json:"batchSize,omitempty"`

	// MaxPathsPerBlock caps path enumeration per procedural block
	MaxPathsPerBlock int `json:"maxPathsPerBlock,omitempty"`

	// ExploreTime bounds the run in seconds (0 = unbounded)
	ExploreTime int `json:"exploreTime,omitempty"`
}

// CacheConfig controls solver verdict caching
type CacheConfig struct {
	// Enabled turns on the cache
	Enabled *bool `json:"enabled,omitempty"`

	// Backend is "file" or "badger"
	Backend string `json:"backend,omitempty"`

	// Dir is the cache directory (relative to the design directory if not absolute)
	Dir string `json:"dir,omitempty"`
}

// OutputConfig controls what a run writes
type OutputConfig struct {
	// Format is "text" or "json"
	Format string `json:"format,omitempty"`

	// MetricsFile receives prometheus metrics in textfile format
	MetricsFile string `json:"metricsFile,omitempty"`

	// Timing enables JSONL stage timings
	Timing bool `json:"timing,omitempty"`

	// TimingPath is the JSONL destination; empty means stderr
	TimingPath string `json:"timingPath,omitempty"`
}

const (
	defaultExplosionThreshold = 10000
	defaultBatchSize          = 1000
	defaultMaxPathsPerBlock   = 65536
	defaultCacheDir           = ".hdlsym_cache"
)

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Design: DesignConfig{
			Files:   []string{"*.json", "*.yaml", "*.yml"},
			Exclude: []string{"hdlsym.json", ".hdlsym.json"},
		},
		Engine: EngineConfig{
			ExplosionThreshold: defaultExplosionThreshold,
			BatchSize:          defaultBatchSize,
			MaxPathsPerBlock:   defaultMaxPathsPerBlock,
		},
		Cache: CacheConfig{
			Enabled: boolPtr(false),
			Backend: "file",
			Dir:     defaultCacheDir,
		},
		Output: OutputConfig{
			Format: "text",
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./hdlsym.json (current working directory)
//  2. ./.hdlsym.json (current working directory)
//  3. <rootPath>/hdlsym.json (if different from cwd)
//  4. ~/.config/hdlsym/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "hdlsym.json"),
		filepath.Join(cwd, ".hdlsym.json"),
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, "hdlsym.json"),
				filepath.Join(rootPath, ".hdlsym.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "hdlsym", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if len(c.Design.Files) == 0 {
		c.Design.Files = []string{"*.json", "*.yaml", "*.yml"}
	}
	if c.Engine.ExplosionThreshold <= 0 {
		c.Engine.ExplosionThreshold = defaultExplosionThreshold
	}
	if c.Engine.BatchSize <= 0 {
		c.Engine.BatchSize = defaultBatchSize
	}
	if c.Engine.MaxPathsPerBlock <= 0 {
		c.Engine.MaxPathsPerBlock = defaultMaxPathsPerBlock
	}
	if c.Cache.Enabled == nil {
		c.Cache.Enabled = boolPtr(false)
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "file"
	}
	if c.Cache.Dir == "" {
		c.Cache.Dir = defaultCacheDir
	}
	if c.Output.Format == "" {
		c.Output.Format = "text"
	}
}

// Validate rejects values the runner cannot act on
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "file", "badger":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown output format %q", c.Output.Format)
	}
	if c.Engine.ExploreTime < 0 {
		return fmt.Errorf("exploreTime must not be negative")
	}
	return nil
}

// CacheEnabled reports whether solver verdicts are cached
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled != nil && *c.Cache.Enabled
}

// ResolveCacheDir anchors a relative cache directory at the design root
func (c *Config) ResolveCacheDir(rootPath string) string {
	baseDir := rootPath
	if info, err := os.Stat(rootPath); err == nil && !info.IsDir() {
		baseDir = filepath.Dir(rootPath)
	}
	dir := c.Cache.Dir
	if dir == "" {
		dir = defaultCacheDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	return dir
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ShouldExcludeFile checks if a file matches an exclude pattern
func (c *Config) ShouldExcludeFile(filePath string) bool {
	for _, pattern := range c.Design.Exclude {
		if matched, _ := filepath.Match(pattern, filePath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(filePath)); matched {
			return true
		}
	}
	return false
}
