// Package config loads the recognized configuration keys from spec §6 from
// a YAML file plus environment overrides, read once at process start and
// threaded explicitly through the store/LSH/query constructors rather than
// read ad hoc from globals (Design Note "Global state").
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Format is one of table|json|csv. The core never acts on it — it is
// carried only because spec §6 lists it as a recognized key; rendering it
// is the output formatter's job, an external collaborator.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

// Config holds every recognized key from spec §6, all optional with the
// documented defaults.
type Config struct {
	LSHThreshold    float64 `yaml:"lsh_threshold"`
	NumPermutations int     `yaml:"num_permutations"`
	TopN            int     `yaml:"top_n"`
	NgramSize       int     `yaml:"ngram_size"`
	JaccardWeight   float64 `yaml:"jaccard_weight"`
	Format          Format  `yaml:"format"`

	// Not part of spec §6's key table, but every path-resolving caller
	// needs somewhere to read these from; kept on Config rather than read
	// from os.Getenv scattered across packages.
	CacheDir  string `yaml:"-"`
	ConfigDir string `yaml:"-"`
	StoreURL  string `yaml:"-"`
}

// Default returns the documented defaults from spec §6.
func Default() Config {
	return Config{
		LSHThreshold:    0.5,
		NumPermutations: 128,
		TopN:            5,
		NgramSize:       3,
		JaccardWeight:   0.4,
		Format:          FormatTable,
		CacheDir:        defaultCacheDir(),
		ConfigDir:       defaultConfigDir(),
		StoreURL:        "./resembl.db",
	}
}

const (
	envCacheDir = "RESEMBL_CACHE_DIR"
	envConfig   = "RESEMBL_CONFIG_DIR"
	envStoreURL = "SNIPPET_DB_URL"
)

func defaultCacheDir() string {
	if v := os.Getenv(envCacheDir); v != "" {
		return v
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "resembl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".resembl-cache"
	}
	return filepath.Join(home, ".cache", "resembl")
}

func defaultConfigDir() string {
	if v := os.Getenv(envConfig); v != "" {
		return v
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "resembl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".resembl-config"
	}
	return filepath.Join(home, ".config", "resembl")
}

// Load reads config.yaml from the config directory (if present), then
// applies environment overrides, then validates. A missing config file is
// not an error — defaults apply.
func Load() (Config, error) {
	cfg := Default()

	path := filepath.Join(cfg.ConfigDir, "config.yaml")
	data, err := os.ReadFile(path)
	if err == nil {
		if uerr := yaml.Unmarshal(data, &cfg); uerr != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, uerr)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	if v := os.Getenv(envStoreURL); v != "" {
		cfg.StoreURL = v
	}
	// Re-resolve dirs in case the config file changed ConfigDir's sibling
	// values is not supported (ConfigDir/CacheDir are yaml:"-"); env wins.
	if v := os.Getenv(envCacheDir); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv(envConfig); v != "" {
		cfg.ConfigDir = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every key against the bounds spec §6 and §4.G document.
func (c Config) Validate() error {
	if c.LSHThreshold < 0.0 || c.LSHThreshold >= 0.99 {
		return fmt.Errorf("config: lsh_threshold must be in [0.0, 0.99), got %v", c.LSHThreshold)
	}
	if c.NumPermutations <= 0 {
		return fmt.Errorf("config: num_permutations must be positive, got %d", c.NumPermutations)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("config: top_n must be positive, got %d", c.TopN)
	}
	if c.NgramSize < 1 {
		return fmt.Errorf("config: ngram_size must be >= 1, got %d", c.NgramSize)
	}
	if c.JaccardWeight < 0.0 || c.JaccardWeight > 1.0 {
		return fmt.Errorf("config: jaccard_weight must be in [0,1], got %v", c.JaccardWeight)
	}
	switch c.Format {
	case FormatTable, FormatJSON, FormatCSV:
	default:
		return fmt.Errorf("config: format must be one of table|json|csv, got %q", c.Format)
	}
	return nil
}
