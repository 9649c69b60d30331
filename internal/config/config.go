// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

// Package config loads tqarz settings from file, environment and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix, e.g. TQARZ_LOG_LEVEL.
const EnvPrefix = "TQARZ"

// ErrInvalidConfig reports a setting outside its allowed range.
var ErrInvalidConfig = errors.New("invalid config")

// Config stores all tqarz settings.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Text     TextConfig     `mapstructure:"text"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Search   SearchConfig   `mapstructure:"search"`
}

// LogConfig stores logging settings.
type LogConfig struct {
	// Level is a zerolog level name.
	Level string `mapstructure:"level"`
}

// ExtractConfig stores bulk extraction settings.
type ExtractConfig struct {
	// Workers is the extraction worker count; zero means GOMAXPROCS.
	Workers int `mapstructure:"workers"`
	// RawNames disables file name sanitizing.
	RawNames bool `mapstructure:"raw_names"`
}

// DatabaseConfig stores database write-back settings.
type DatabaseConfig struct {
	// SnapshotStore is a bbolt file keeping pristine records across runs.
	SnapshotStore string `mapstructure:"snapshot_store"`
	// BackupKeep is the number of .bak generations kept after a save.
	BackupKeep int `mapstructure:"backup_keep"`
}

// SearchConfig stores string pool search settings.
type SearchConfig struct {
	// Limit caps search results; zero means unlimited.
	Limit int `mapstructure:"limit"`
}

// TextConfig stores text resource settings.
type TextConfig struct {
	// Archive is a text ARC used to translate tags.
	Archive string `mapstructure:"archive"`
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("log.level", "warn")
	v.SetDefault("extract.workers", 0)
	v.SetDefault("extract.raw_names", false)
	v.SetDefault("database.backup_keep", 1)
	v.SetDefault("database.snapshot_store", "")
	v.SetDefault("search.limit", 100)
	v.SetDefault("text.archive", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configPath, or tqarz.yaml from the working directory and
// $HOME/.config/tqarz when configPath is empty, and decodes v into Config.
// A missing default config file is not an error.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("tqarz")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "tqarz"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Extract.Workers < 0 {
		return fmt.Errorf("%w: extract.workers must be >= 0, got %d", ErrInvalidConfig, c.Extract.Workers)
	}
	if c.Database.BackupKeep < 0 {
		return fmt.Errorf("%w: database.backup_keep must be >= 0, got %d", ErrInvalidConfig, c.Database.BackupKeep)
	}
	if c.Search.Limit < 0 {
		return fmt.Errorf("%w: search.limit must be >= 0, got %d", ErrInvalidConfig, c.Search.Limit)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}

	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(c.Log.Level)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}

	return lvl, nil
}
