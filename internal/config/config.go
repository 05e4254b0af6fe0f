// Package config holds the runtime configuration: built-in defaults overlaid
// with an optional YAML file under ~/.pydex/.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/adelyne/pydex/internal/cache"
	"github.com/adelyne/pydex/internal/watcher"
)

type LoaderConfig struct {
	SearchPaths     []string `yaml:"search_paths"`
	DocstringStyle  string   `yaml:"docstring_style"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	Workers         int      `yaml:"workers"`
}

type CacheConfig struct {
	Enabled         bool     `yaml:"enabled"`
	DBPath          string   `yaml:"db_path"`
	MaxFileSize     int64    `yaml:"max_file_size"`
	MaxQueueSize    int      `yaml:"max_queue_size"`
	WorkerCount     int      `yaml:"worker_count"`
	RateLimit       int      `yaml:"rate_limit"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
}

type Config struct {
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"`
	Loader    LoaderConfig   `yaml:"loader"`
	Cache     CacheConfig    `yaml:"cache"`
	Watcher   watcher.Config `yaml:"watcher"`
}

func homeConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".pydex")
}

// Default returns the built-in configuration.
func Default() *Config {
	workerDefaults := cache.DefaultWorkerConfig()

	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Loader: LoaderConfig{
			SearchPaths:    []string{"."},
			DocstringStyle: "none",
			Workers:        1,
		},
		Cache: CacheConfig{
			Enabled:         true,
			DBPath:          filepath.Join(homeConfigDir(), "cache.db"),
			MaxFileSize:     workerDefaults.MaxFileSize,
			MaxQueueSize:    workerDefaults.MaxQueueSize,
			WorkerCount:     workerDefaults.WorkerCount,
			RateLimit:       workerDefaults.RateLimit,
			ExcludePatterns: workerDefaults.ExcludePatterns,
		},
		Watcher: watcher.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults. An empty path falls
// back to ~/.pydex/config.yaml; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(homeConfigDir(), "config.yaml")
		if _, err := os.Stat(path); err != nil {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// WorkerConfig maps the cache section onto the worker's own config type.
func (c *Config) WorkerConfig() cache.WorkerConfig {
	return cache.WorkerConfig{
		WorkerCount:     c.Cache.WorkerCount,
		MaxQueueSize:    c.Cache.MaxQueueSize,
		RateLimit:       c.Cache.RateLimit,
		MaxFileSize:     c.Cache.MaxFileSize,
		ExcludePatterns: c.Cache.ExcludePatterns,
	}
}

func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(homeConfigDir(), 0700)
}
