package config

import (
	"time"

	"github.com/mattjoyce/vgpusim/internal/arena"
)

// Config represents the complete vgpu configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service" json:"service"`
	Arena     ArenaConfig     `yaml:"arena" json:"arena"`
	Scheduler SchedulerConfig `yaml:"scheduler" json:"scheduler"`
	Thermal   ThermalConfig   `yaml:"thermal" json:"thermal"`
	Watchdog  WatchdogConfig  `yaml:"watchdog" json:"watchdog"`

	// SourcePath is the file the config was loaded from, empty for defaults.
	SourcePath string `yaml:"-" json:"source_path,omitempty"`
}

// ServiceConfig defines process-wide settings.
type ServiceConfig struct {
	Name      string `yaml:"name" json:"name"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`
}

// ArenaConfig locates the shared region and the firmware's instance lock.
type ArenaConfig struct {
	Path     string `yaml:"path" json:"path"`
	LockPath string `yaml:"lock_path" json:"lock_path"`
}

// SchedulerConfig controls the pacing of the arbitration loop.
type SchedulerConfig struct {
	// IdleSleep is slept after a tick in which no tenant had work.
	IdleSleep time.Duration `yaml:"idle_sleep" json:"idle_sleep"`
	// ThrottleSleep is slept instead of servicing while over the limit.
	ThrottleSleep time.Duration `yaml:"throttle_sleep" json:"throttle_sleep"`
	// CostScale multiplies every command's simulated execution time.
	// 0 executes commands back to back.
	CostScale float64 `yaml:"cost_scale" json:"cost_scale"`
}

// ThermalConfig is the heat model shared by scheduler and watchdog.
type ThermalConfig struct {
	Ambient       float32 `yaml:"ambient" json:"ambient"`
	Limit         float32 `yaml:"limit" json:"limit"`
	CoolingFactor float32 `yaml:"cooling_factor" json:"cooling_factor"`
}

// WatchdogConfig controls heartbeat sampling.
type WatchdogConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	Interval        time.Duration `yaml:"interval" json:"interval"`
	Threshold       int           `yaml:"threshold" json:"threshold"`
	SafeTemperature float32       `yaml:"safe_temperature" json:"safe_temperature"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "vgpu",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Arena: ArenaConfig{
			Path:     arena.DefaultPath,
			LockPath: "/tmp/vgpu-firmware.lock",
		},
		Scheduler: SchedulerConfig{
			IdleSleep:     10 * time.Millisecond,
			ThrottleSleep: 500 * time.Millisecond,
			CostScale:     1,
		},
		Thermal: ThermalConfig{
			Ambient:       40,
			Limit:         80,
			CoolingFactor: 0.05,
		},
		Watchdog: WatchdogConfig{
			Enabled:         true,
			Interval:        time.Second,
			Threshold:       3,
			SafeTemperature: 40,
		},
	}
}
