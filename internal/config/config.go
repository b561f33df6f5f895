// Package config handles configuration loading from TOML files and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"mvdan.cc/sh/v3/shell"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Project ProjectConfig `toml:"project"`
	Cache   CacheConfig   `toml:"cache"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig describes the child analysis-server process.
type ServerConfig struct {
	// Command is the full command line spawning the analysis server,
	// e.g. "node /usr/lib/node_modules/typescript/lib/tsserver.js".
	Command string `toml:"command"`
}

// Argv splits Command with shell word rules (quoting respected).
func (s ServerConfig) Argv() ([]string, error) {
	fields, err := shell.Fields(s.Command, nil)
	if err != nil {
		return nil, fmt.Errorf("config: server.command: %w", err)
	}
	if len(fields) == 0 {
		return nil, errors.New("config: server.command is empty")
	}
	return fields, nil
}

// ProjectConfig establishes the initial project file set.
type ProjectConfig struct {
	// Root is the directory scanned for project files.
	Root string `toml:"root"`
	// Files are extra paths indexed in addition to the scan.
	Files []string `toml:"files"`
	// Extensions limit the scan; defaults to .ts and .tsx.
	Extensions []string `toml:"extensions"`
	// Exclude lists directory names skipped during the scan.
	Exclude []string `toml:"exclude"`
}

// RootOrDefault returns the configured root or the current directory.
func (p ProjectConfig) RootOrDefault() string {
	if p.Root == "" {
		return "."
	}
	return p.Root
}

// ExtensionsOrDefault returns the configured extensions or {.ts, .tsx}.
func (p ProjectConfig) ExtensionsOrDefault() []string {
	if len(p.Extensions) == 0 {
		return []string{".ts", ".tsx"}
	}
	return p.Extensions
}

// ExcludeOrDefault returns the configured exclude list or the usual suspects.
func (p ProjectConfig) ExcludeOrDefault() []string {
	if len(p.Exclude) == 0 {
		return []string{"node_modules", "dist", "build"}
	}
	return p.Exclude
}

// CacheConfig holds parse-cache settings.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// PathOrDefault returns the configured cache path or one under the user
// cache directory.
func (c CacheConfig) PathOrDefault() (string, error) {
	if c.Path != "" {
		return c.Path, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("config: cache path: %w", err)
	}
	dir = filepath.Join(dir, "tstap")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("config: cache dir: %w", err)
	}
	return filepath.Join(dir, "exports.db"), nil
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LevelOrDefault returns the configured level or "info".
func (l LogConfig) LevelOrDefault() string {
	if l.Level == "" {
		return "info"
	}
	return l.Level
}

// Load reads configuration from a TOML file and applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	// Config file is required
	if path == "" {
		return nil, errors.New("config path is required")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Command == "" {
		errs = append(errs, errors.New("server.command is required"))
	} else if _, err := c.Server.Argv(); err != nil {
		errs = append(errs, err)
	}

	switch c.Log.LevelOrDefault() {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level=%q must be one of debug, info, warn, error", c.Log.Level))
	}

	for _, ext := range c.Project.ExtensionsOrDefault() {
		if len(ext) < 2 || ext[0] != '.' {
			errs = append(errs, fmt.Errorf("project.extensions entry %q must start with a dot", ext))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	for _, setter := range []struct {
		env   string
		apply func(string)
	}{
		{"TSTAP_SERVER_COMMAND", func(v string) {
			if v != "" {
				cfg.Server.Command = v
			}
		}},
		{"TSTAP_PROJECT_ROOT", func(v string) {
			if v != "" {
				cfg.Project.Root = v
			}
		}},
		{"TSTAP_LOG_LEVEL", func(v string) {
			if v != "" {
				cfg.Log.Level = v
			}
		}},
	} {
		setter.apply(os.Getenv(setter.env))
	}
}
