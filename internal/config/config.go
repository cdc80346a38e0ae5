// Package config handles loading and persisting user configuration
// for streamrows. Configuration is stored in ~/.streamrows/config.json
// and can be overridden with STREAMROWS_* environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	dirName   = ".streamrows"
	fileName  = "config.json"
	envPrefix = "STREAMROWS"

	defaultEndpoint  = "https://api.openai.com/v1/chat/completions"
	defaultModel     = "gpt-3.5-turbo"
	defaultMaxTokens = 100
	defaultRows      = 3
	defaultLogLevel  = "warn"
	defaultLogFormat = "console"
)

// Config holds the user's configuration.
type Config struct {
	APIKey    string        `json:"api_key,omitempty" mapstructure:"api_key"`
	Endpoint  string        `json:"endpoint,omitempty" mapstructure:"endpoint"`
	Model     string        `json:"model,omitempty" mapstructure:"model"`
	MaxTokens int           `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Rows      int           `json:"rows,omitempty" mapstructure:"rows"`
	Timeout   time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`
	LogLevel  string        `json:"log_level,omitempty" mapstructure:"log_level"`
	LogFormat string        `json:"log_format,omitempty" mapstructure:"log_format"`
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

func configPath() string {
	return filepath.Join(Dir(), fileName)
}

// Default returns a Config with every field at its default.
func Default() *Config {
	return &Config{
		Endpoint:  defaultEndpoint,
		Model:     defaultModel,
		MaxTokens: defaultMaxTokens,
		Rows:      defaultRows,
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	d := Default()
	v.SetDefault("api_key", "")
	v.SetDefault("endpoint", d.Endpoint)
	v.SetDefault("model", d.Model)
	v.SetDefault("max_tokens", d.MaxTokens)
	v.SetDefault("rows", d.Rows)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)

	v.SetConfigFile(configPath())
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration from disk and environment variables.
// A missing config file is not an error.
func Load() (*Config, error) {
	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s: %w", configPath(), err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Endpoint == "" {
		c.Endpoint = d.Endpoint
	}
	if c.Model == "" {
		c.Model = d.Model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.Rows <= 0 {
		c.Rows = d.Rows
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = d.LogFormat
	}
}

// MaskedAPIKey returns the key with everything but its ends hidden.
func (c *Config) MaskedAPIKey() string {
	switch n := len(c.APIKey); {
	case n == 0:
		return "(not set)"
	case n <= 8:
		return strings.Repeat("*", n)
	default:
		return c.APIKey[:4] + "..." + c.APIKey[n-4:]
	}
}

// update rewrites a single key in the config file. Only what is already
// on disk is kept; environment overrides are never persisted.
func update(key string, value any) error {
	stored := map[string]any{}
	data, err := os.ReadFile(configPath())
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to parse %s: %w", configPath(), err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	stored[key] = value
	return save(stored)
}

// save persists the config to disk.
func save(stored map[string]any) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath(), data, 0o600)
}

// SetAPIKey saves the API key to the config file.
func SetAPIKey(key string) error {
	return update("api_key", key)
}

// SetEndpoint saves the default endpoint URL to the config file.
func SetEndpoint(url string) error {
	return update("endpoint", url)
}

// SetModel saves the model preference to the config file.
func SetModel(model string) error {
	return update("model", model)
}
