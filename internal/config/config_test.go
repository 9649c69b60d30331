// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ConfigTestSuite struct {
	suite.Suite
	tempDir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (s *ConfigTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	// Keep a real ~/.config/tqarz out of the search path.
	s.T().Setenv("HOME", s.tempDir)
}

func (s *ConfigTestSuite) writeConfig(content string) string {
	path := filepath.Join(s.tempDir, "tqarz.yaml")
	require.NoError(s.T(), os.WriteFile(path, []byte(content), 0o600))
	return path
}

func (s *ConfigTestSuite) TestDefaults() {
	cfg, err := Load(New(), "")
	require.NoError(s.T(), err)

	assert.Equal(s.T(), "warn", cfg.Log.Level)
	assert.Equal(s.T(), 0, cfg.Extract.Workers)
	assert.False(s.T(), cfg.Extract.RawNames)
	assert.Equal(s.T(), 1, cfg.Database.BackupKeep)
	assert.Empty(s.T(), cfg.Database.SnapshotStore)
	assert.Equal(s.T(), 100, cfg.Search.Limit)
	assert.Empty(s.T(), cfg.Text.Archive)

	lvl, err := cfg.LogLevel()
	require.NoError(s.T(), err)
	assert.Equal(s.T(), zerolog.WarnLevel, lvl)
}

func (s *ConfigTestSuite) TestFile() {
	path := s.writeConfig(`
log:
  level: debug
extract:
  workers: 4
  raw_names: true
database:
  backup_keep: 3
  snapshot_store: /var/lib/tqarz/snapshots.db
search:
  limit: 10
text:
  archive: Text/Text_EN.arc
`)

	cfg, err := Load(New(), path)
	require.NoError(s.T(), err)

	assert.Equal(s.T(), "debug", cfg.Log.Level)
	assert.Equal(s.T(), 4, cfg.Extract.Workers)
	assert.True(s.T(), cfg.Extract.RawNames)
	assert.Equal(s.T(), 3, cfg.Database.BackupKeep)
	assert.Equal(s.T(), "/var/lib/tqarz/snapshots.db", cfg.Database.SnapshotStore)
	assert.Equal(s.T(), 10, cfg.Search.Limit)
	assert.Equal(s.T(), "Text/Text_EN.arc", cfg.Text.Archive)
}

func (s *ConfigTestSuite) TestHomeConfig() {
	dir := filepath.Join(s.tempDir, ".config", "tqarz")
	require.NoError(s.T(), os.MkdirAll(dir, 0o750))
	require.NoError(s.T(), os.WriteFile(filepath.Join(dir, "tqarz.yaml"), []byte("search:\n  limit: 7\n"), 0o600))

	cfg, err := Load(New(), "")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 7, cfg.Search.Limit)
}

func (s *ConfigTestSuite) TestEnvOverridesFile() {
	path := s.writeConfig("database:\n  backup_keep: 3\n")
	s.T().Setenv("TQARZ_DATABASE_BACKUP_KEEP", "5")
	s.T().Setenv("TQARZ_LOG_LEVEL", "error")

	cfg, err := Load(New(), path)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 5, cfg.Database.BackupKeep)
	assert.Equal(s.T(), "error", cfg.Log.Level)
}

func (s *ConfigTestSuite) TestMissingExplicitFile() {
	_, err := Load(New(), filepath.Join(s.tempDir, "missing.yaml"))
	require.Error(s.T(), err)
}

func (s *ConfigTestSuite) TestInvalidValues() {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "workers", content: "extract:\n  workers: -1\n"},
		{name: "backup keep", content: "database:\n  backup_keep: -2\n"},
		{name: "limit", content: "search:\n  limit: -5\n"},
		{name: "log level", content: "log:\n  level: loud\n"},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := Load(New(), s.writeConfig(tc.content))
			require.ErrorIs(s.T(), err, ErrInvalidConfig)
		})
	}
}
