package config

import (
	"time"

	"github.com/mattjoyce/speclaunch/internal/argspec"
)

// Config is the launcher configuration.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Spec   SpecConfig   `yaml:"spec"`
	Launch LaunchConfig `yaml:"launch"`
	State  StateConfig  `yaml:"state"`

	// SourcePath is the file the config was read from; empty for defaults.
	SourcePath string `yaml:"-"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SpecConfig controls which protocol flags a launch must carry.
type SpecConfig struct {
	RequireVersion   bool     `yaml:"require_version"`
	RequireChecksum  bool     `yaml:"require_checksum"`
	AcceptedVersions []uint64 `yaml:"accepted_versions"`
}

// Policy converts the section into the decoder's validation policy.
func (s SpecConfig) Policy() argspec.Policy {
	return argspec.Policy{
		RequireVersion:   s.RequireVersion,
		RequireChecksum:  s.RequireChecksum,
		AcceptedVersions: s.AcceptedVersions,
	}
}

type LaunchConfig struct {
	// LockPath, when set, is a slot lock held for the lifetime of the job.
	LockPath         string        `yaml:"lock_path"`
	ForwardSignals   bool          `yaml:"forward_signals"`
	TerminationGrace time.Duration `yaml:"termination_grace"`
	// UniformFailureCode replaces every launcher-side exit code when > 0.
	UniformFailureCode int `yaml:"uniform_failure_code"`
}

// StateConfig locates the launch history database. An empty Path disables
// history.
type StateConfig struct {
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// Defaults returns the configuration used when no file is found.
func Defaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Spec: SpecConfig{
			RequireVersion: true,
		},
		Launch: LaunchConfig{
			ForwardSignals:   true,
			TerminationGrace: 10 * time.Second,
		},
		State: StateConfig{
			Retention: 30 * 24 * time.Hour,
		},
	}
}

// HistoryEnabled reports whether launches are recorded.
func (c *Config) HistoryEnabled() bool {
	return c.State.Path != ""
}
