// Package watchdog samples the scheduler heartbeat and repairs shared state
// when it stops advancing.
//
// The repair is soft: the stall is counted and the temperature restored in
// place. A scheduler stuck inside a command keeps spinning; only a process
// restart would clear it.
package watchdog

import (
	"context"
	"log/slog"
	"time"

	"github.com/mattjoyce/vgpusim/internal/config"
	"github.com/mattjoyce/vgpusim/internal/events"
)

// State of the monitor.
type State int

const (
	AwaitingFirstSignal State = iota
	Monitoring
	// Alerted is reported for the sample that crossed the threshold only;
	// the monitor is back in Monitoring afterwards.
	Alerted
)

func (s State) String() string {
	switch s {
	case AwaitingFirstSignal:
		return "AWAITING_FIRST_SIGNAL"
	case Monitoring:
		return "MONITORING"
	case Alerted:
		return "ALERTED"
	default:
		return "UNKNOWN"
	}
}

// Device is the part of the arena the watchdog reads and repairs.
type Device interface {
	Heartbeat() uint64
	AddWatchdogReset() uint32
	StoreTemperature(v float32)
}

// Watchdog is not safe for concurrent use; Run owns it.
type Watchdog struct {
	dev    Device
	cfg    config.WatchdogConfig
	events *events.Hub
	logger *slog.Logger

	state  State
	last   uint64
	stalls int
}

// New creates a watchdog. The heartbeat value at construction is the
// initial value that must be exceeded before monitoring starts.
func New(dev Device, cfg config.WatchdogConfig, hub *events.Hub, logger *slog.Logger) *Watchdog {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 3
	}
	return &Watchdog{
		dev:    dev,
		cfg:    cfg,
		events: hub,
		logger: logger.With("component", "watchdog"),
		state:  AwaitingFirstSignal,
		last:   dev.Heartbeat(),
	}
}

// State returns the current state.
func (w *Watchdog) State() State { return w.state }

// Stalls returns the number of consecutive unchanged samples.
func (w *Watchdog) Stalls() int { return w.stalls }

// Observe feeds one heartbeat sample through the state machine and returns
// the state for that sample. It has no side effects on the device.
func (w *Watchdog) Observe(hb uint64) State {
	switch w.state {
	case AwaitingFirstSignal:
		if hb != w.last {
			w.last = hb
			w.state = Monitoring
		}
		return w.state
	default:
		if hb != w.last {
			w.last = hb
			w.stalls = 0
			return Monitoring
		}
		w.stalls++
		if w.stalls < w.cfg.Threshold {
			return Monitoring
		}
		w.stalls = 0
		w.state = Monitoring
		return Alerted
	}
}

// Sample reads the heartbeat once and repairs the device on alert.
func (w *Watchdog) Sample() State {
	hb := w.dev.Heartbeat()
	prev := w.state
	st := w.Observe(hb)
	if prev == AwaitingFirstSignal && st == Monitoring {
		w.logger.Info("heartbeat detected, monitoring", "heartbeat", hb)
	}
	if st == Alerted {
		w.repair(hb)
	}
	return st
}

func (w *Watchdog) repair(hb uint64) {
	resets := w.dev.AddWatchdogReset()
	w.dev.StoreTemperature(w.cfg.SafeTemperature)
	w.logger.Error("heartbeat stalled, soft reset applied",
		"heartbeat", hb,
		"threshold", w.cfg.Threshold,
		"resets", resets,
		"temperature", w.cfg.SafeTemperature)
	w.events.Publish(events.WatchdogAlert, events.WatchdogPayload{
		Heartbeat: hb,
		Stalls:    w.cfg.Threshold,
		Resets:    resets,
		Restored:  w.cfg.SafeTemperature,
	})
}

// Run samples every cfg.Interval until ctx is done. It returns nil on
// cancellation.
func (w *Watchdog) Run(ctx context.Context) error {
	interval := w.cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	w.logger.Info("watchdog started", "interval", interval, "threshold", w.cfg.Threshold)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("watchdog stopped")
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}
