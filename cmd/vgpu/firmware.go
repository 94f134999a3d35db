package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/events"
	"github.com/mattjoyce/vgpusim/internal/executor"
	"github.com/mattjoyce/vgpusim/internal/lock"
	"github.com/mattjoyce/vgpusim/internal/log"
	"github.com/mattjoyce/vgpusim/internal/scheduler"
	"github.com/mattjoyce/vgpusim/internal/watchdog"
)

// shutdownGrace bounds how long a signal waits for the scheduler loop. A
// scheduler stuck in HANG never returns.
var shutdownGrace = 2 * time.Second

func runFirmwareNoun(args []string) int {
	if len(args) < 1 {
		printFirmwareHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printFirmwareHelp(os.Stdout)
		return 0
	}

	switch args[0] {
	case "start":
		if hasHelpFlag(args[1:]) {
			fmt.Println("Usage: vgpu firmware start [--config PATH] [--arena PATH]")
			return 0
		}
		return runFirmwareStart(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown firmware action: %s\n", args[0])
		printFirmwareHelp(os.Stderr)
		return 1
	}
}

func printFirmwareHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: vgpu firmware <action> [flags]")
	fmt.Fprintln(w, "Actions: start")
}

func runFirmwareStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	arenaPath := fs.String("arena", "", "Override arena.path")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath, *arenaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("firmware")
	logger.Info("vgpu firmware starting", "version", version, "config", cfg.SourcePath, "arena", cfg.Arena.Path)

	pidLock, err := lock.AcquirePIDLock(cfg.Arena.LockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another firmware may be running)", "path", cfg.Arena.LockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	a, err := arena.Create(cfg.Arena.Path, cfg.Thermal.Ambient)
	if err != nil {
		logger.Error("failed to create arena", "path", cfg.Arena.Path, "error", err)
		return 1
	}
	logger.Info("arena created", "path", cfg.Arena.Path, "bytes", arena.Size,
		"tenants", arena.MaxTenants, "thermal_limit", cfg.Thermal.Limit)

	hub := events.NewHub(256)
	exec := executor.New(a, executor.Portable{},
		executor.WithCostScale(cfg.Scheduler.CostScale),
		executor.WithLogger(log.Get()))
	sched := scheduler.New(a, exec, cfg, hub, log.Get())

	var wd *watchdog.Watchdog
	if cfg.Watchdog.Enabled {
		wd = watchdog.New(a, cfg.Watchdog, hub, log.Get())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, abandoned := serveFirmware(ctx, sched, wd, hub, os.Stdout, logger)
	if abandoned {
		// The hung loop still writes through the mapping; only unlink.
		if err := os.Remove(cfg.Arena.Path); err != nil {
			logger.Error("failed to remove arena", "path", cfg.Arena.Path, "error", err)
		}
		return code
	}

	if err := a.Teardown(); err != nil {
		logger.Error("arena teardown failed", "error", err)
		return 1
	}
	logger.Info("vgpu firmware stopped", "code", code)
	return code
}

// serveFirmware runs the scheduler and watchdog until EXIT or ctx is done and
// returns the process exit code. abandoned reports that the scheduler loop
// was still running when serveFirmware gave up on it.
func serveFirmware(ctx context.Context, sched *scheduler.Scheduler, wd *watchdog.Watchdog,
	hub *events.Hub, out io.Writer, logger *slog.Logger) (code int, abandoned bool) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	reportEvents(gctx, g, hub, out)
	g.Go(func() error {
		// EXIT returns nil, which errgroup does not treat as a reason to
		// cancel the others.
		defer cancel()
		return sched.Run(gctx)
	})
	if wd != nil {
		g.Go(func() error { return wd.Run(gctx) })
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		logger.Info("received shutdown signal")
		select {
		case err = <-done:
		case <-time.After(shutdownGrace):
			logger.Error("scheduler did not stop, abandoning hung loop", "grace", shutdownGrace)
			return 1, true
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("firmware task failed", "error", err)
		return 1, false
	}
	return 0, false
}

// reportEvents prints device-visible results on out, one line each. The
// subscription is taken before it returns.
func reportEvents(ctx context.Context, g *errgroup.Group, hub *events.Hub, out io.Writer) {
	ch, unsubscribe := hub.Subscribe()
	g.Go(func() error {
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				// Events published just before EXIT are still buffered.
				for {
					select {
					case ev := <-ch:
						printEvent(out, ev)
					default:
						return nil
					}
				}
			case ev := <-ch:
				printEvent(out, ev)
			}
		}
	})
}

func printEvent(out io.Writer, ev events.Event) {
	switch ev.Type {
	case events.ChecksumVerified:
		var p events.ChecksumPayload
		if ev.Decode(&p) == nil {
			status := "verified"
			if !p.Match {
				status = "MISMATCH"
			}
			fmt.Fprintf(out, "[GPU] tenant %d checksum %d + %d = %d (%s)\n", p.Tenant, p.A, p.B, p.Result, status)
		}
	case events.WatchdogAlert:
		var p events.WatchdogPayload
		if ev.Decode(&p) == nil {
			fmt.Fprintf(out, "[WATCHDOG] heartbeat stalled at %d, reset #%d\n", p.Heartbeat, p.Resets)
		}
	case events.ThermalThrottled:
		var p events.ThermalPayload
		if ev.Decode(&p) == nil {
			fmt.Fprintf(out, "[GPU] thermal throttling at %.2f°C\n", p.Temperature)
		}
	case events.SchedulerExit:
		var p events.ExitPayload
		if ev.Decode(&p) == nil {
			fmt.Fprintf(out, "[GPU] shutdown requested by tenant %d after %d frames\n", p.Tenant, p.Frames)
		}
	}
}
