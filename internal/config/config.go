// Package config loads and validates diffstitch's on-disk configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration for diffstitch.
type Config struct {
	// TargetDir is the default directory patches are applied against
	// when --target-dir is not passed on the command line.
	TargetDir string `yaml:"target_dir,omitempty"`

	// FuzzThreshold is the default character-level fuzzy-match floor in
	// [0, 1]. 0 disables the fuzzy tier.
	FuzzThreshold float64 `yaml:"fuzz_threshold,omitempty"`

	// IgnoreGlobs excludes matching file_path entries from a patch run
	// entirely (skipped before any hunk is located).
	IgnoreGlobs []string `yaml:"ignore_globs,omitempty"`

	// LogFormat is "json" or "text".
	LogFormat string `yaml:"log_format,omitempty"`
	// LogLevel is "debug|info|warn|error".
	LogLevel string `yaml:"log_level,omitempty"`

	// HistoryDBPath is where the sqlite apply-history store lives. If
	// empty, history recording is disabled.
	HistoryDBPath string `yaml:"history_db_path,omitempty"`
}

// Default returns the built-in defaults used when no config file exists.
func Default() *Config {
	return &Config{
		TargetDir:     ".",
		FuzzThreshold: 0.0,
		LogFormat:     "text",
		LogLevel:      "info",
	}
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.FuzzThreshold < 0 || c.FuzzThreshold > 1 {
		return fmt.Errorf("fuzz_threshold must be in [0, 1], got %v", c.FuzzThreshold)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	for i, g := range c.IgnoreGlobs {
		if strings.TrimSpace(g) == "" {
			return fmt.Errorf("ignore_globs[%d]: empty pattern", i)
		}
		if _, err := filepath.Match(g, "probe"); err != nil {
			return fmt.Errorf("ignore_globs[%d]: %w", i, err)
		}
	}
	return nil
}

// DefaultConfigPath returns the default config path:
//
//	~/.config/diffstitch/config.yaml
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return "diffstitch.config.yaml"
	}
	return filepath.Join(home, ".config", "diffstitch", "config.yaml")
}

// Load reads and validates a YAML config file. A missing file is not an
// error: the built-in defaults are returned instead.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ShouldIgnore reports whether filePath matches one of cfg's ignore globs.
func (c *Config) ShouldIgnore(filePath string) bool {
	if c == nil {
		return false
	}
	base := filepath.Base(filePath)
	for _, g := range c.IgnoreGlobs {
		if ok, _ := filepath.Match(g, filePath); ok {
			return true
		}
		if ok, _ := filepath.Match(g, base); ok {
			return true
		}
	}
	return false
}
