package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Environment variables that override file values.
const (
	EnvLogLevel  = "SPECLAUNCH_LOG_LEVEL"
	EnvLogFormat = "SPECLAUNCH_LOG_FORMAT"
	EnvStatePath = "SPECLAUNCH_STATE_PATH"
)

// LoadDiscovered loads the file chosen by Discover, or the defaults when
// there is none. Environment overrides apply either way.
func LoadDiscovered() (*Config, error) {
	path, err := Discover()
	if err != nil {
		return nil, err
	}
	if path == "" {
		cfg := Defaults()
		applyEnvOverrides(cfg, os.LookupEnv)
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return Load(path)
}

// Load reads the YAML file at configPath on top of Defaults, expands ${VAR}
// references, applies environment overrides and validates the result.
// Unknown keys are an error.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", absPath, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", absPath, err)
	}
	cfg.SourcePath = absPath

	applyEnvOverrides(cfg, os.LookupEnv)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func parse(data []byte) (*Config, error) {
	cfg := Defaults()

	dec := yaml.NewDecoder(bytes.NewReader([]byte(interpolateEnv(string(data)))))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Unset variables are left in place so validate can name them.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v, ok := lookup(EnvStatePath); ok {
		cfg.State.Path = v
	}
}

// Validate checks a config assembled outside Load.
func Validate(cfg *Config) error {
	return validate(cfg)
}

func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error (got %q)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("log.format must be json or text (got %q)", cfg.Log.Format)
	}

	if cfg.Launch.TerminationGrace < 0 {
		return fmt.Errorf("launch.termination_grace must not be negative (got %s)", cfg.Launch.TerminationGrace)
	}
	if c := cfg.Launch.UniformFailureCode; c < 0 || c > 255 {
		return fmt.Errorf("launch.uniform_failure_code must be between 0 and 255 (got %d)", c)
	}
	if err := checkUnresolved("launch.lock_path", cfg.Launch.LockPath); err != nil {
		return err
	}

	if err := checkUnresolved("state.path", cfg.State.Path); err != nil {
		return err
	}
	if cfg.State.Retention <= 0 {
		return fmt.Errorf("state.retention must be positive (got %s)", cfg.State.Retention)
	}
	return nil
}

func checkUnresolved(field, value string) error {
	if m := envVarPattern.FindStringSubmatch(value); m != nil {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, m[1])
	}
	return nil
}

// shown is the YAML shape printed by Marshal; durations are rendered as
// strings so the output can be loaded again.
type shown struct {
	Log    LogConfig  `yaml:"log"`
	Spec   SpecConfig `yaml:"spec"`
	Launch struct {
		LockPath           string `yaml:"lock_path"`
		ForwardSignals     bool   `yaml:"forward_signals"`
		TerminationGrace   string `yaml:"termination_grace"`
		UniformFailureCode int    `yaml:"uniform_failure_code"`
	} `yaml:"launch"`
	State struct {
		Path      string `yaml:"path"`
		Retention string `yaml:"retention"`
	} `yaml:"state"`
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var s shown
	s.Log = cfg.Log
	s.Spec = cfg.Spec
	if s.Spec.AcceptedVersions == nil {
		s.Spec.AcceptedVersions = []uint64{}
	}
	s.Launch.LockPath = cfg.Launch.LockPath
	s.Launch.ForwardSignals = cfg.Launch.ForwardSignals
	s.Launch.TerminationGrace = cfg.Launch.TerminationGrace.String()
	s.Launch.UniformFailureCode = cfg.Launch.UniformFailureCode
	s.State.Path = cfg.State.Path
	s.State.Retention = cfg.State.Retention.String()

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&s); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf.Bytes(), nil
}
