// Package config loads folish settings from a YAML file and the environment.
//
// Precedence, lowest to highest: built-in defaults, the config file,
// FOLISH_* environment variables. The result is an explicit value that the
// CLI constructs once at startup and passes to the components that need it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/folish/folish/pkg/codec"
)

const (
	appDirName        = "folish"
	canvasDirName     = "canvases"
	configFileName    = "config.yaml"
	defaultServerAddr = "127.0.0.1:7420"
	defaultAutosave   = "autosave"
)

// Config holds all folish settings.
type Config struct {
	// BaseDir is where project files live. Empty means the per-user
	// application data directory.
	BaseDir string `yaml:"base_dir" env:"FOLISH_BASE_DIR"`

	// LogDir overrides the session log directory.
	LogDir string `yaml:"log_dir" env:"FOLISH_LOG_DIR"`

	Compression CompressionConfig `yaml:"compression"`
	Autosave    AutosaveConfig    `yaml:"autosave"`
	Server      ServerConfig      `yaml:"server"`
}

// CompressionConfig tunes the project file compressor.
type CompressionConfig struct {
	Quality    int `yaml:"quality" env:"FOLISH_COMPRESSION_QUALITY"`
	WindowBits int `yaml:"window_bits" env:"FOLISH_COMPRESSION_WINDOW_BITS"`
	BufferSize int `yaml:"buffer_size" env:"FOLISH_COMPRESSION_BUFFER_SIZE"`
}

// AutosaveConfig controls periodic saving of the open document.
type AutosaveConfig struct {
	Enabled  bool          `yaml:"enabled" env:"FOLISH_AUTOSAVE_ENABLED"`
	Interval time.Duration `yaml:"interval" env:"FOLISH_AUTOSAVE_INTERVAL"`
	Name     string        `yaml:"name" env:"FOLISH_AUTOSAVE_NAME"`
}

// ServerConfig controls the websocket command endpoint.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"FOLISH_SERVER_ADDR"`
	MDNS bool   `yaml:"mdns" env:"FOLISH_SERVER_MDNS"`
}

// Default returns the built-in settings.
func Default() *Config {
	opts := codec.DefaultOptions()
	return &Config{
		Compression: CompressionConfig{
			Quality:    opts.Quality,
			WindowBits: opts.WindowBits,
			BufferSize: opts.BufferSize,
		},
		Autosave: AutosaveConfig{
			Enabled:  true,
			Interval: 5 * time.Second,
			Name:     defaultAutosave,
		},
		Server: ServerConfig{
			Addr: defaultServerAddr,
		},
	}
}

// DefaultPath returns <user config dir>/folish/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, appDirName, configFileName), nil
}

// Load builds the effective configuration. If path is empty, DefaultPath is
// used. A missing file is not an error; defaults and the environment apply.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// No file yet; defaults apply
	case err != nil:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values no component can use.
func (c *Config) Validate() error {
	if err := c.CodecOptions().Validate(); err != nil {
		return fmt.Errorf("invalid compression settings: %w", err)
	}
	if c.Autosave.Enabled {
		if err := c.Autosave.Validate(); err != nil {
			return err
		}
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	return nil
}

// Validate checks the settings an autosaver runs with. Config.Validate only
// calls it when autosave is enabled, so code that turns autosave on itself
// must call it too.
func (a AutosaveConfig) Validate() error {
	if a.Interval <= 0 {
		return fmt.Errorf("autosave interval must be positive, got %s", a.Interval)
	}
	if a.Name == "" {
		return fmt.Errorf("autosave name cannot be empty")
	}
	return nil
}

// CodecOptions converts the compression settings for the codec package.
func (c *Config) CodecOptions() codec.Options {
	return codec.Options{
		Quality:    c.Compression.Quality,
		WindowBits: c.Compression.WindowBits,
		BufferSize: c.Compression.BufferSize,
	}
}

// ResolveBaseDir returns the absolute project directory. "~/" is expanded;
// an empty BaseDir resolves to <user config dir>/folish/canvases.
func (c *Config) ResolveBaseDir() (string, error) {
	dir := c.BaseDir
	switch {
	case dir == "":
		appData, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve application data directory: %w", err)
		}
		dir = filepath.Join(appData, appDirName, canvasDirName)
	case dir == "~" || strings.HasPrefix(dir, "~/"):
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to expand ~: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory %s: %w", dir, err)
	}
	return abs, nil
}

// Write stores the configuration as YAML at path, atomically.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp config file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
