package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RateLimit bounds the number of operations against a root within a sliding
// window. A nil *RateLimit on SecurityPolicy means unlimited.
type RateLimit struct {
	MaxRequests int `yaml:"max_requests" json:"max_requests"`
	WindowMS    int `yaml:"window_ms" json:"window_ms"`
}

// SecurityPolicy configures the Path Guard.
type SecurityPolicy struct {
	// Root is the filesystem root every intent is contained within.
	Root string `yaml:"root" json:"root"`

	// AllowedExtensions, when non-empty, is the only set of extensions
	// read/write intents may target. Empty means "all".
	AllowedExtensions []string `yaml:"allowed_extensions" json:"allowed_extensions"`

	// BlockedPathSegments is a set of path components that are never
	// addressable, regardless of AllowedExtensions.
	BlockedPathSegments []string `yaml:"blocked_path_segments" json:"blocked_path_segments"`

	// MaxFileSize caps both on-disk file size and write payload length.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// RateLimit bounds call volume per (effective_root, target) pair.
	RateLimit *RateLimit `yaml:"rate_limit" json:"rate_limit"`
}

// EngineOptions configures the Indexer, Search/Scorer, and Keyword
// Extractor.
type EngineOptions struct {
	MaxIndexDepth      int     `yaml:"max_index_depth" json:"max_index_depth"`
	MaxKeywordsPerFile int     `yaml:"max_keywords_per_file" json:"max_keywords_per_file"`
	ReadCapBytes       int64   `yaml:"read_cap_bytes" json:"read_cap_bytes"`
	SemanticThreshold  float64 `yaml:"semantic_threshold" json:"semantic_threshold"`
	MaxResults         int     `yaml:"max_results" json:"max_results"`
}

// Config is the complete engine configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Security SecurityPolicy `yaml:"security" json:"security"`
	Engine   EngineOptions  `yaml:"engine" json:"engine"`
	LogLevel string         `yaml:"log_level" json:"log_level"`
}

// defaultBlockedSegments is the default BlockedPathSegments list. A config
// file or PACKFS_BLOCKED_PATH_SEGMENTS replaces the whole list, these
// defaults included.
var defaultBlockedSegments = []string{".git", "node_modules", ".packfs-index.json"}

// NewConfig returns a Config populated with conservative defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Security: SecurityPolicy{
			AllowedExtensions:   nil,
			BlockedPathSegments: append([]string(nil), defaultBlockedSegments...),
			MaxFileSize:         10 * 1024 * 1024,
			RateLimit:           nil,
		},
		Engine: EngineOptions{
			MaxIndexDepth:      10,
			MaxKeywordsPerFile: 64,
			ReadCapBytes:       262144,
			SemanticThreshold:  0.3,
			MaxResults:         50,
		},
		LogLevel: "info",
	}
}

// Load builds a Config for root in order of increasing precedence:
//  1. Hardcoded defaults (NewConfig)
//  2. `.packfs.yaml`/`.packfs.yml` in root
//  3. PACKFS_* environment variables
//
// Root is always set last, overriding anything a config file claims.
func Load(root string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(root); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	cfg.Security.Root = absRoot

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".packfs.yaml", ".packfs.yml"} {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		return c.loadYAML(path)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}

	if len(other.Security.AllowedExtensions) > 0 {
		c.Security.AllowedExtensions = other.Security.AllowedExtensions
	}
	if len(other.Security.BlockedPathSegments) > 0 {
		c.Security.BlockedPathSegments = other.Security.BlockedPathSegments
	}
	if other.Security.MaxFileSize != 0 {
		c.Security.MaxFileSize = other.Security.MaxFileSize
	}
	if other.Security.RateLimit != nil {
		c.Security.RateLimit = other.Security.RateLimit
	}

	if other.Engine.MaxIndexDepth != 0 {
		c.Engine.MaxIndexDepth = other.Engine.MaxIndexDepth
	}
	if other.Engine.MaxKeywordsPerFile != 0 {
		c.Engine.MaxKeywordsPerFile = other.Engine.MaxKeywordsPerFile
	}
	if other.Engine.ReadCapBytes != 0 {
		c.Engine.ReadCapBytes = other.Engine.ReadCapBytes
	}
	if other.Engine.SemanticThreshold != 0 {
		c.Engine.SemanticThreshold = other.Engine.SemanticThreshold
	}
	if other.Engine.MaxResults != 0 {
		c.Engine.MaxResults = other.Engine.MaxResults
	}
}

// applyEnvOverrides applies PACKFS_* environment variable overrides, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PACKFS_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PACKFS_MAX_FILE_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Security.MaxFileSize = n
		}
	}
	if v := os.Getenv("PACKFS_ALLOWED_EXTENSIONS"); v != "" {
		c.Security.AllowedExtensions = splitCSV(v)
	}
	if v := os.Getenv("PACKFS_BLOCKED_PATH_SEGMENTS"); v != "" {
		c.Security.BlockedPathSegments = splitCSV(v)
	}
	if v := os.Getenv("PACKFS_MAX_INDEX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Engine.MaxIndexDepth = n
		}
	}
	if v := os.Getenv("PACKFS_MAX_KEYWORDS_PER_FILE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Engine.MaxKeywordsPerFile = n
		}
	}
	if v := os.Getenv("PACKFS_READ_CAP_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Engine.ReadCapBytes = n
		}
	}
	if v := os.Getenv("PACKFS_SEMANTIC_THRESHOLD"); v != "" {
		if f, err := parseFloat64(v); err == nil && f >= 0 && f <= 1 {
			c.Engine.SemanticThreshold = f
		}
	}
	if v := os.Getenv("PACKFS_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Engine.MaxResults = n
		}
	}
	if v := os.Getenv("PACKFS_RATE_LIMIT_MAX_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if c.Security.RateLimit == nil {
				c.Security.RateLimit = &RateLimit{}
			}
			c.Security.RateLimit.MaxRequests = n
		}
	}
	if v := os.Getenv("PACKFS_RATE_LIMIT_WINDOW_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			if c.Security.RateLimit == nil {
				c.Security.RateLimit = &RateLimit{}
			}
			c.Security.RateLimit.WindowMS = n
		}
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Security.Root == "" {
		return fmt.Errorf("security.root must be set")
	}
	if !filepath.IsAbs(c.Security.Root) {
		return fmt.Errorf("security.root must be absolute, got %s", c.Security.Root)
	}
	if c.Security.MaxFileSize <= 0 {
		return fmt.Errorf("security.max_file_size must be positive, got %d", c.Security.MaxFileSize)
	}
	if c.Security.RateLimit != nil {
		if c.Security.RateLimit.MaxRequests <= 0 {
			return fmt.Errorf("security.rate_limit.max_requests must be positive, got %d", c.Security.RateLimit.MaxRequests)
		}
		if c.Security.RateLimit.WindowMS <= 0 {
			return fmt.Errorf("security.rate_limit.window_ms must be positive, got %d", c.Security.RateLimit.WindowMS)
		}
	}

	if c.Engine.MaxIndexDepth <= 0 {
		return fmt.Errorf("engine.max_index_depth must be positive, got %d", c.Engine.MaxIndexDepth)
	}
	if c.Engine.MaxKeywordsPerFile <= 0 {
		return fmt.Errorf("engine.max_keywords_per_file must be positive, got %d", c.Engine.MaxKeywordsPerFile)
	}
	if c.Engine.ReadCapBytes <= 0 {
		return fmt.Errorf("engine.read_cap_bytes must be positive, got %d", c.Engine.ReadCapBytes)
	}
	if c.Engine.SemanticThreshold < 0 || c.Engine.SemanticThreshold > 1 {
		return fmt.Errorf("engine.semantic_threshold must be between 0 and 1, got %f", c.Engine.SemanticThreshold)
	}
	if c.Engine.MaxResults <= 0 {
		return fmt.Errorf("engine.max_results must be positive, got %d", c.Engine.MaxResults)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
