package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// EnvConfigPath names the environment variable consulted when no --config
// flag is given.
const EnvConfigPath = "VGPU_CONFIG"

// Load reads configuration from a YAML file. Keys missing from the file keep
// their Defaults() value. An empty path falls back to $VGPU_CONFIG and then
// to pure defaults.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv(EnvConfigPath)
	}
	if configPath == "" {
		cfg := Defaults()
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	cfg, err := loadConfigFile(absPath)
	if err != nil {
		return nil, err
	}
	cfg.SourcePath = absPath

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadConfigFile parses path on top of Defaults().
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	interpolated := interpolateEnv(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}

	if cfg.Arena.Path == "" {
		return fmt.Errorf("arena.path is required")
	}
	if envVarPattern.MatchString(cfg.Arena.Path) {
		matches := envVarPattern.FindStringSubmatch(cfg.Arena.Path)
		return fmt.Errorf("arena.path: environment variable ${%s} is not set", matches[1])
	}

	if cfg.Scheduler.IdleSleep < 0 || cfg.Scheduler.ThrottleSleep < 0 {
		return fmt.Errorf("scheduler sleeps must not be negative")
	}
	if cfg.Scheduler.CostScale < 0 {
		return fmt.Errorf("scheduler.cost_scale must not be negative")
	}

	if cfg.Thermal.Limit <= cfg.Thermal.Ambient {
		return fmt.Errorf("thermal.limit (%.1f) must be above thermal.ambient (%.1f)", cfg.Thermal.Limit, cfg.Thermal.Ambient)
	}
	if cfg.Thermal.CoolingFactor <= 0 || cfg.Thermal.CoolingFactor > 1 {
		return fmt.Errorf("thermal.cooling_factor must be in (0, 1] (got %v)", cfg.Thermal.CoolingFactor)
	}

	if cfg.Watchdog.Enabled {
		if cfg.Watchdog.Interval <= 0 {
			return fmt.Errorf("watchdog.interval must be positive")
		}
		if cfg.Watchdog.Threshold < 1 {
			return fmt.Errorf("watchdog.threshold must be at least 1")
		}
	}
	return nil
}
