// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 7, cfg.RecentRuleAgeDays)
	assert.Equal(t, 7, cfg.AuditLookbackDays)
	assert.Equal(t, "authenticator", cfg.MFAMethod)
	assert.Equal(t, 24, cfg.SecretLength)
	assert.NotEmpty(t, cfg.OutputDir)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("PartialFileFallsBackToDefaults", func(t *testing.T) {
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("recent_rule_age_days: 14\n"), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 14, cfg.RecentRuleAgeDays)
		assert.Equal(t, 7, cfg.AuditLookbackDays)
		assert.Equal(t, "authenticator", cfg.MFAMethod)
	})

	t.Run("ExplicitValues", func(t *testing.T) {
		path := filepath.Join(dir, "full.yaml")
		data := "output_dir: /tmp/lockdown-runs\naudit_lookback_days: 30\nmfa_method: fido2\nsecret_length: 32\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/lockdown-runs", cfg.OutputDir)
		assert.Equal(t, 30, cfg.AuditLookbackDays)
		assert.Equal(t, "fido2", cfg.MFAMethod)
		assert.Equal(t, 32, cfg.SecretLength)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("InvalidYAML", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("output_dir: [unclosed"), 0o644))

		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestExpandPathWithTilde(t *testing.T) {
	t.Setenv("LOCKDOWN_HOME", "/test/home")

	assert.Equal(t, "/test/home", ExpandPathWithTilde("~"))
	assert.Equal(t, filepath.Join("/test/home", "reports"), ExpandPathWithTilde("~/reports"))
	assert.Equal(t, "/absolute/path", ExpandPathWithTilde("/absolute/path"))
}

func TestGlobalConfigFilePath(t *testing.T) {
	t.Setenv("LOCKDOWN_HOME", "/test/home")

	assert.Equal(t, filepath.Join("/test/home", DefaultConfigDir, DefaultConfigFileName), GlobalConfigFilePath())
}
