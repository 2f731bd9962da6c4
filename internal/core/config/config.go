// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Constants for default paths
const (
	DefaultConfigDir      = ".lockdown"
	DefaultConfigFileName = "config.yaml"
	DefaultOutputDir      = "~/.lockdown/runs"
)

// Config holds the global application configuration.
type Config struct {
	// Directory where reports, audit exports, and credential files are written.
	OutputDir string `yaml:"output_dir"`

	// Inbox rules created within this many days are treated as attacker
	// artifacts and deleted. The reference behavior is 7 days.
	RecentRuleAgeDays int `yaml:"recent_rule_age_days"`

	// Audit events initiated by the target within this many days are exported.
	AuditLookbackDays int `yaml:"audit_lookback_days"`

	// Second-factor method requested when MFA enablement is confirmed.
	MFAMethod string `yaml:"mfa_method"`

	// Length of the generated replacement credential.
	SecretLength int `yaml:"secret_length"`
}

// NewDefaultConfig creates a default configuration.
func NewDefaultConfig() *Config {
	return &Config{
		OutputDir:         ExpandPathWithTilde(DefaultOutputDir),
		RecentRuleAgeDays: 7,
		AuditLookbackDays: 7,
		MFAMethod:         "authenticator",
		SecretLength:      24,
	}
}

// LoadConfig loads configuration from the given file. Unset fields fall back
// to their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	defaults := NewDefaultConfig()
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaults.OutputDir
	} else {
		cfg.OutputDir = ExpandPathWithTilde(cfg.OutputDir)
	}
	if cfg.RecentRuleAgeDays <= 0 {
		cfg.RecentRuleAgeDays = defaults.RecentRuleAgeDays
	}
	if cfg.AuditLookbackDays <= 0 {
		cfg.AuditLookbackDays = defaults.AuditLookbackDays
	}
	if cfg.MFAMethod == "" {
		cfg.MFAMethod = defaults.MFAMethod
	}
	if cfg.SecretLength <= 0 {
		cfg.SecretLength = defaults.SecretLength
	}

	return cfg, nil
}

// GlobalConfigFilePath returns the absolute path to the global lockdown
// config file. It respects the LOCKDOWN_HOME environment variable for
// testing purposes.
func GlobalConfigFilePath() string {
	return filepath.Join(getHomeDir(), DefaultConfigDir, DefaultConfigFileName)
}

// ExpandPathWithTilde expands ~ to the user home directory.
// It respects the LOCKDOWN_HOME environment variable for testing purposes.
func ExpandPathWithTilde(path string) string {
	if path == "~" {
		home := getHomeDir()
		if home == "" {
			return path // Return original if can't expand
		}
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home := getHomeDir()
		if home == "" {
			return path // Return original if can't expand
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// getHomeDir returns the home directory, respecting LOCKDOWN_HOME for testing
func getHomeDir() string {
	if lockdownHome := os.Getenv("LOCKDOWN_HOME"); lockdownHome != "" {
		return lockdownHome
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "" // Return empty if can't determine
	}
	return home
}
