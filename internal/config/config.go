// Package config loads the nnsplit command's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jamesainslie/go-nnsplit"
	"github.com/jamesainslie/go-nnsplit/resource"
)

// Config holds all nnsplit command configuration.
type Config struct {
	// Model is a registered model name, used when ModelPath is empty.
	Model     string `toml:"model"`
	ModelPath string `toml:"model_path"`
	CacheDir  string `toml:"cache_dir"`
	PoolSize  int    `toml:"pool_size"`

	Split nnsplit.Options `toml:"split"`
	Bench BenchConfig     `toml:"bench"`

	// Models adds or overrides registry entries, name -> base URL.
	Models map[string]string `toml:"models"`
}

type BenchConfig struct {
	Corpus          string  `toml:"corpus"`
	Tolerance       int     `toml:"tolerance"`
	PrecisionWeight float64 `toml:"precision_weight"`
	RecallWeight    float64 `toml:"recall_weight"`
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Model: "en",
		Split: nnsplit.DefaultOptions(),
		Bench: BenchConfig{
			Corpus:          "testdata/corpus",
			Tolerance:       3,
			PrecisionWeight: 1.0,
			RecallWeight:    1.0,
		},
	}
}

// Load reads config from path, or from the standard locations when path is
// empty, falling back to defaults. An explicit path must exist.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else {
		for _, p := range configPaths() {
			if _, err := os.Stat(p); err == nil {
				if _, err := toml.DecodeFile(p, &cfg); err != nil {
					return cfg, fmt.Errorf("parse config %s: %w", p, err)
				}
				break
			}
		}
	}

	// Expand ~ in paths
	cfg.ModelPath = expandHome(cfg.ModelPath)
	cfg.CacheDir = expandHome(cfg.CacheDir)
	cfg.Bench.Corpus = expandHome(cfg.Bench.Corpus)

	if err := cfg.Split.Validate(); err != nil {
		return cfg, fmt.Errorf("config [split]: %w", err)
	}
	if cfg.ModelPath == "" && cfg.Model == "" {
		return cfg, errors.New("config: one of model or model_path is required")
	}

	return cfg, nil
}

// Registry returns the published models overridden by the [models] table.
func (c Config) Registry() (*resource.Registry, error) {
	custom := resource.NewRegistry()
	for name, base := range c.Models {
		if err := custom.Add(name, base); err != nil {
			return nil, fmt.Errorf("config [models]: %w", err)
		}
	}
	return resource.DefaultRegistry().Merge(custom), nil
}

func configPaths() []string {
	var paths []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "nnsplit", "config.toml"))
	}

	home, _ := os.UserHomeDir()
	if home != "" {
		paths = append(paths, filepath.Join(home, ".config", "nnsplit", "config.toml"))
	}

	return paths
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
