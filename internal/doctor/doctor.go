// Package doctor validates vgpu configuration and the host environment the
// firmware will run in.
package doctor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/config"
	"github.com/mattjoyce/vgpusim/internal/executor"
	"github.com/mattjoyce/vgpusim/internal/lock"
	"github.com/mattjoyce/vgpusim/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config

	// Overridable for tests.
	fsType   func(string) (string, error)
	checkFS  func(string) error
	lockedBy func(string) (int, bool)
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{
		cfg:      cfg,
		fsType:   storage.FilesystemType,
		checkFS:  storage.ValidateBackingPath,
		lockedBy: lockHolder,
	}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateArena(r)
	d.validateLock(r)
	d.validateThermal(r)
	d.validateScheduler(r)
	d.validateWatchdog(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateArena checks the backing path and any region already there.
func (d *Doctor) validateArena(r *Result) {
	path := d.cfg.Arena.Path
	if path == "" {
		d.addError(r, "arena", "arena.path", "arena.path is required")
		return
	}
	if err := d.checkFS(path); err != nil {
		d.addError(r, "arena", "arena.path", err.Error())
		return
	}
	if runtime.GOOS == "linux" {
		if t, err := d.fsType(path); err == nil && t != "tmpfs" {
			d.addWarning(r, "arena", "arena.path",
				fmt.Sprintf("%s is on %s, not tmpfs; the region will be backed by disk", path, t))
		}
	}

	a, err := arena.Attach(path)
	switch {
	case err == nil:
		if a.Running() {
			d.addWarning(r, "arena", "arena.path",
				fmt.Sprintf("a live region exists at %s (heartbeat %d); starting firmware would replace it", path, a.Heartbeat()))
		}
		_ = a.Close()
	case errors.Is(err, arena.ErrNotFound), errors.Is(err, fs.ErrNotExist):
	case errors.Is(err, arena.ErrLayoutMismatch):
		d.addWarning(r, "arena", "arena.path",
			fmt.Sprintf("stale region with an incompatible layout at %s will be overwritten", path))
	default:
		d.addWarning(r, "arena", "arena.path", fmt.Sprintf("cannot inspect %s: %v", path, err))
	}
}

// validateLock checks that no other firmware holds the instance lock.
func (d *Doctor) validateLock(r *Result) {
	if d.cfg.Arena.LockPath == "" {
		d.addError(r, "lock", "arena.lock_path", "arena.lock_path is required")
		return
	}
	if pid, held := d.lockedBy(d.cfg.Arena.LockPath); held {
		d.addWarning(r, "lock", "arena.lock_path",
			fmt.Sprintf("firmware lock is held by pid %d", pid))
	}
}

func (d *Doctor) validateThermal(r *Result) {
	th := d.cfg.Thermal
	if th.Limit <= th.Ambient {
		d.addError(r, "thermal", "thermal.limit",
			fmt.Sprintf("limit %.1f must be above ambient %.1f", th.Limit, th.Ambient))
	}
	safe := d.cfg.Watchdog.SafeTemperature
	if safe > th.Limit {
		d.addError(r, "thermal", "watchdog.safe_temperature",
			fmt.Sprintf("safe temperature %.1f is above the throttle limit %.1f", safe, th.Limit))
	} else if safe < th.Ambient {
		d.addWarning(r, "thermal", "watchdog.safe_temperature",
			fmt.Sprintf("safe temperature %.1f is below ambient %.1f", safe, th.Ambient))
	}
}

func (d *Doctor) validateScheduler(r *Result) {
	s := d.cfg.Scheduler
	if s.IdleSleep == 0 {
		d.addWarning(r, "scheduler", "scheduler.idle_sleep", "idle_sleep is 0; the scheduler will spin when idle")
	}
	if s.ThrottleSleep == 0 {
		d.addWarning(r, "scheduler", "scheduler.throttle_sleep", "throttle_sleep is 0; throttling will not slow the device")
	}
	if s.CostScale == 0 {
		d.addWarning(r, "scheduler", "scheduler.cost_scale", "cost_scale is 0; commands take no device time")
	}
}

// validateWatchdog flags windows short enough to alert on a healthy tick.
func (d *Doctor) validateWatchdog(r *Result) {
	w := d.cfg.Watchdog
	if !w.Enabled {
		d.addWarning(r, "watchdog", "watchdog.enabled", "watchdog disabled; HANG will go unnoticed")
		return
	}
	window := w.Interval * time.Duration(w.Threshold)
	longest := d.longestTick()
	if window <= longest {
		d.addWarning(r, "watchdog", "watchdog.interval",
			fmt.Sprintf("stall window %s is not longer than the slowest healthy tick %s; expect false alerts", window, longest))
	}
}

func (d *Doctor) longestTick() time.Duration {
	s := d.cfg.Scheduler
	busy := time.Duration(float64(executor.DrawCost) * s.CostScale * float64(arena.MaxTenants))
	return max(s.ThrottleSleep, s.IdleSleep, busy)
}

func lockHolder(path string) (int, bool) {
	pid, held, err := lock.Probe(path)
	if err != nil {
		return 0, false
	}
	return pid, held
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
