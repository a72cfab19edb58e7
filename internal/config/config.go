package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harrison/rescuelens/internal/behavioral"
)

// EnvRootDir overrides root_dir from the config file when set
const EnvRootDir = "RESCUELENS_ROOT"

// StoreConfig represents results store configuration
type StoreConfig struct {
	// Enabled records every sweep in the results database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the results database, relative to the
	// rescuelens home directory unless absolute
	DBPath string `yaml:"db_path"`

	// Incremental reuses stored snapshots for run files whose size and
	// modification time are unchanged
	Incremental bool `yaml:"incremental"`
}

// Config represents rescuelens configuration options
type Config struct {
	// RootDir holds one directory per complexity level
	RootDir string `yaml:"root_dir"`

	// Output is the report destination
	Output string `yaml:"output"`

	// Format is the report format (csv, json, markdown, html)
	Format string `yaml:"format"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// Workers is the number of files analyzed in parallel (1 = sequential)
	Workers int `yaml:"workers"`

	// Extensions lists the run file extensions to analyze
	Extensions []string `yaml:"extensions"`

	// MaxLineBytes caps the size of a single log line
	MaxLineBytes int `yaml:"max_line_bytes"`

	// Grid lists the complexity and agent bucket directories to visit
	Grid behavioral.Grid `yaml:"grid"`

	// Store contains results store configuration
	Store StoreConfig `yaml:"store"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		RootDir:      ".",
		Output:       "detailed_results.csv",
		Format:       behavioral.FormatCSV,
		LogLevel:     "info",
		Workers:      1,
		Extensions:   append([]string(nil), behavioral.DefaultRunExtensions...),
		MaxLineBytes: behavioral.DefaultMaxLineBytes,
		Grid:         behavioral.DefaultGrid(),
		Store: StoreConfig{
			Enabled:     false,
			DBPath:      "results.db",
			Incremental: false,
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
// RESCUELENS_ROOT, when set, replaces root_dir either way.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyEnv(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Only keys present in the file replace defaults, so an explicit
	// `workers: 0` or `store.enabled: false` is honoured.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if _, exists := rawMap["root_dir"]; exists {
		cfg.RootDir = fileCfg.RootDir
	}
	if _, exists := rawMap["output"]; exists {
		cfg.Output = fileCfg.Output
	}
	if _, exists := rawMap["format"]; exists {
		cfg.Format = fileCfg.Format
	}
	if _, exists := rawMap["log_level"]; exists {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if _, exists := rawMap["workers"]; exists {
		cfg.Workers = fileCfg.Workers
	}
	if _, exists := rawMap["extensions"]; exists {
		cfg.Extensions = fileCfg.Extensions
	}
	if _, exists := rawMap["max_line_bytes"]; exists {
		cfg.MaxLineBytes = fileCfg.MaxLineBytes
	}

	if gridSection, exists := rawMap["grid"]; exists && gridSection != nil {
		gridMap, _ := gridSection.(map[string]interface{})
		if _, exists := gridMap["complexity_levels"]; exists {
			cfg.Grid.ComplexityLevels = fileCfg.Grid.ComplexityLevels
		}
		if _, exists := gridMap["agent_buckets"]; exists {
			cfg.Grid.AgentBuckets = fileCfg.Grid.AgentBuckets
		}
	}

	if storeSection, exists := rawMap["store"]; exists && storeSection != nil {
		storeMap, _ := storeSection.(map[string]interface{})
		if _, exists := storeMap["enabled"]; exists {
			cfg.Store.Enabled = fileCfg.Store.Enabled
		}
		if _, exists := storeMap["db_path"]; exists {
			cfg.Store.DBPath = fileCfg.Store.DBPath
		}
		if _, exists := storeMap["incremental"]; exists {
			cfg.Store.Incremental = fileCfg.Store.Incremental
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if root := strings.TrimSpace(os.Getenv(EnvRootDir)); root != "" {
		cfg.RootDir = root
	}
}

// LoadConfigFromDir loads configuration from .rescuelens/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, HomeDirName, "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(rootDir *string, output *string, format *string, workers *int, dbPath *string, incremental *bool) {
	if rootDir != nil {
		c.RootDir = *rootDir
	}
	if output != nil {
		c.Output = *output
	}
	if format != nil {
		c.Format = *format
	}
	if workers != nil {
		c.Workers = *workers
	}
	if dbPath != nil {
		c.Store.DBPath = *dbPath
		c.Store.Enabled = true
	}
	if incremental != nil {
		c.Store.Incremental = *incremental
		if *incremental {
			c.Store.Enabled = true
		}
	}
}

// Validate validates the configuration values and lowercases log_level
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RootDir) == "" {
		return fmt.Errorf("root_dir cannot be empty")
	}
	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("output cannot be empty")
	}
	if _, err := behavioral.ParseExportFormat(c.Format); err != nil {
		return err
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.MaxLineBytes <= 0 {
		return fmt.Errorf("max_line_bytes must be > 0, got %d", c.MaxLineBytes)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("extensions cannot be empty")
	}
	for _, ext := range c.Extensions {
		if strings.TrimSpace(ext) == "" {
			return fmt.Errorf("extensions cannot contain an empty entry")
		}
	}

	if err := c.Grid.Validate(); err != nil {
		return fmt.Errorf("invalid grid: %w", err)
	}

	if c.Store.Enabled && c.Store.DBPath == "" {
		return fmt.Errorf("store.db_path cannot be empty when the store is enabled")
	}
	if c.Store.Incremental && !c.Store.Enabled {
		return fmt.Errorf("store.incremental requires store.enabled")
	}

	return nil
}

// ExtractOptions returns the extractor settings derived from the config
func (c *Config) ExtractOptions() behavioral.ExtractOptions {
	return behavioral.ExtractOptions{MaxLineBytes: c.MaxLineBytes}
}
