// Package scheduler runs the firmware's arbitration loop: one tick stamps the
// heartbeat, checks the thermal limit and services at most one command from
// every active tenant, in ascending slot order starting at 0 every tick.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/channel"
	"github.com/mattjoyce/vgpusim/internal/command"
	"github.com/mattjoyce/vgpusim/internal/config"
	"github.com/mattjoyce/vgpusim/internal/events"
	"github.com/mattjoyce/vgpusim/internal/executor"
)

// Scheduler owns the consumer side of every tenant channel.
type Scheduler struct {
	arena    *arena.Arena
	exec     Executor
	channels []*channel.Channel
	cfg      config.SchedulerConfig
	thermal  Thermal
	events   *events.Hub
	logger   *slog.Logger
}

// TickResult summarizes one pass of the loop.
type TickResult struct {
	Heartbeat   uint64
	Throttled   bool
	Served      int
	Heat        float32
	Cost        time.Duration
	Temperature float32
	Exit        bool
	ExitTenant  int
}

// New creates a scheduler over a. hub may be nil.
func New(a *arena.Arena, exec Executor, cfg *config.Config, hub *events.Hub, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		arena:   a,
		exec:    exec,
		cfg:     cfg.Scheduler,
		thermal: NewThermal(cfg.Thermal),
		events:  hub,
		logger:  logger.With("component", "scheduler"),
	}
	for i := range arena.MaxTenants {
		// The index is always in range here.
		ch, _ := channel.Open(a, i)
		s.channels = append(s.channels, ch)
	}
	return s
}

// Run ticks until a tenant submits EXIT (returns nil) or ctx is cancelled
// (returns ctx.Err()). A HANG inside a tick blocks Run for good.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler online",
		"thermal_limit", s.thermal.Limit,
		"ambient", s.thermal.Ambient,
		"tenants", len(s.channels))

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("scheduler context cancelled, stopping loop")
			return err
		}

		r := s.Tick()
		if r.Exit {
			s.arena.SetRunning(false)
			frames := s.arena.FrameCounter()
			s.events.Publish(events.SchedulerExit, events.ExitPayload{Tenant: r.ExitTenant, Frames: frames})
			s.logger.Info("shutdown command received", "tenant", r.ExitTenant, "frames", frames)
			return nil
		}

		var pause time.Duration
		switch {
		case r.Throttled:
			pause = s.cfg.ThrottleSleep
		case r.Served == 0:
			pause = s.cfg.IdleSleep
		default:
			pause = r.Cost
		}
		if err := sleep(ctx, pause); err != nil {
			s.logger.Warn("scheduler context cancelled, stopping loop")
			return err
		}
	}
}

// Tick performs one pass without sleeping.
func (s *Scheduler) Tick() TickResult {
	r := TickResult{Heartbeat: s.arena.Beat()}

	if t := s.arena.Temperature(); s.thermal.Throttled(t) {
		r.Throttled = true
		r.Temperature = s.arena.UpdateTemperature(s.thermal.Cool)
		s.logger.Warn("thermal throttling active", "temperature", t, "limit", s.thermal.Limit)
		s.events.Publish(events.ThermalThrottled, events.ThermalPayload{Temperature: t, Limit: s.thermal.Limit})
		return r
	}

	for i, ch := range s.channels {
		if !ch.Active() {
			continue
		}
		cmd, ok := ch.TryDequeue()
		if !ok {
			continue
		}

		res := s.exec.Execute(i, cmd)
		r.Served++
		r.Cost += res.Cost
		r.Heat += res.Heat
		if res.Heat != 0 {
			s.arena.AddTemperature(res.Heat)
		}
		s.arena.AddFrame()
		s.report(i, cmd, res)

		if res.Exit {
			r.Exit = true
			r.ExitTenant = i
			break
		}
	}

	if r.Served == 0 {
		r.Temperature = s.arena.UpdateTemperature(s.thermal.Cool)
	} else {
		r.Temperature = s.arena.Temperature()
	}
	return r
}

func (s *Scheduler) report(tenant int, cmd command.Command, res executor.Result) {
	kind := cmd.Kind().String()
	if res.Rejected != "" {
		s.events.Publish(events.CommandRejected, events.CommandPayload{Tenant: tenant, Kind: kind, Reason: res.Rejected})
		return
	}
	s.logger.Debug("command executed", "tenant", tenant, "kind", kind, "heat", res.Heat,
		"temperature", s.arena.Temperature())
	s.events.Publish(events.CommandExecuted, events.CommandPayload{Tenant: tenant, Kind: kind, Heat: res.Heat})
	if res.Checksum != nil {
		p := events.ChecksumPayload{Tenant: tenant, Result: *res.Checksum, Match: res.ChecksumOK}
		if c, ok := cmd.(command.Checksum); ok {
			p.A, p.B = c.A, c.B
		}
		s.events.Publish(events.ChecksumVerified, p)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
