// Package config loads and serves the process-wide immutable configuration
// snapshot. Load is called at startup by cmd/tac with the config file viper
// located, and decodes that file into this package's plain Config struct;
// Get returns that snapshot from anywhere in the kernel.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

var global *Config

// Load reads and parses a YAML configuration file, applies defaults for any
// unset field, and stores the result as the process-wide snapshot.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "tac.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	global = &cfg
	return &cfg, nil
}

// Set installs cfg as the process-wide snapshot without reading a file —
// used by cmd/tac with an empty Config when no config file is found, and
// by tests.
func Set(cfg *Config) {
	applyDefaults(cfg)
	global = cfg
}

// Get returns the global configuration, or a defaulted empty one if Load/Set
// was never called (keeps package-level helpers usable in unit tests).
func Get() *Config {
	if global == nil {
		cfg := &Config{}
		applyDefaults(cfg)
		global = cfg
	}
	return global
}

func applyDefaults(cfg *Config) {
	if cfg.General.MaxRetriesBlockCreation <= 0 {
		cfg.General.MaxRetriesBlockCreation = 3
	}
	if cfg.General.MaxRetriesProtoblockCreation <= 0 {
		cfg.General.MaxRetriesProtoblockCreation = 3
	}
	if cfg.General.TestPath == "" {
		cfg.General.TestPath = "tests"
	}
	if cfg.General.TestFilePattern == "" {
		cfg.General.TestFilePattern = "*_test.go"
	}
	if cfg.General.CodingAgent == "" {
		cfg.General.CodingAgent = "subprocess"
	}
	if cfg.General.CodingAgentTotalTimeout <= 0 {
		cfg.General.CodingAgentTotalTimeout = 600 * time.Second
	}
	if cfg.General.VisionTimeout <= 0 {
		cfg.General.VisionTimeout = 30 * time.Second
	}
	if cfg.General.VisionScreenshotDelay <= 0 {
		cfg.General.VisionScreenshotDelay = 2 * time.Second
	}

	if cfg.Audit.LogPath == "" {
		cfg.Audit.LogPath = ".tac_audit.log"
	}
	if cfg.Persist.ProtoBlockDir == "" {
		cfg.Persist.ProtoBlockDir = ".tac_protoblocks"
	}
	if cfg.Persist.RunLogDir == "" {
		cfg.Persist.RunLogDir = "."
	}

	for purpose, llmCfg := range cfg.LLMs {
		if llmCfg.Timeout <= 0 {
			llmCfg.Timeout = 120 * time.Second
			cfg.LLMs[purpose] = llmCfg
		}
	}

	if cfg.Vision.ReadinessProbeTimeout <= 0 {
		cfg.Vision.ReadinessProbeTimeout = 10 * time.Second
	}
}

// AuditLogPath returns the audit log path, resolved relative to the working
// directory if not already absolute.
func AuditLogPath() string {
	cfg := Get()
	if filepath.IsAbs(cfg.Audit.LogPath) {
		return cfg.Audit.LogPath
	}
	return cfg.Audit.LogPath
}

// IsAuditEnabled reports whether the audit trail is turned on.
func IsAuditEnabled() bool {
	return Get().Audit.Enabled
}
