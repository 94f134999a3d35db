package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/tui"
)

type statusReport struct {
	arena.Status
	FramebufferDigest string `json:"framebuffer_digest"`
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	arenaPath := fs.String("arena", "", "Override arena.path")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath, *arenaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	a, err := arena.Attach(cfg.Arena.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to attach: %v\n", err)
		return 1
	}
	defer a.Close()

	report := statusReport{Status: a.Snapshot(), FramebufferDigest: a.FramebufferDigest()}
	if *jsonOut {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode status: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}
	printStatus(os.Stdout, report)
	return 0
}

func printStatus(w io.Writer, r statusReport) {
	state := "stopped"
	if r.Running {
		state = "running"
	}
	fmt.Fprintf(w, "Arena:           %s\n", r.Path)
	fmt.Fprintf(w, "State:           %s\n", state)
	fmt.Fprintf(w, "Temperature:     %.2f°C\n", r.Temperature)
	fmt.Fprintf(w, "Heartbeat:       %d\n", r.Heartbeat)
	fmt.Fprintf(w, "Frames:          %d\n", r.FrameCounter)
	fmt.Fprintf(w, "Watchdog resets: %d\n", r.WatchdogResets)
	if r.Checksums > 0 {
		fmt.Fprintf(w, "Last checksum:   %d (%d total)\n", r.LastChecksum, r.Checksums)
	}
	fmt.Fprintf(w, "Framebuffer:     %s\n", r.FramebufferDigest)
	fmt.Fprintln(w, "Tenants:")
	for _, t := range r.Tenants {
		if !t.Active {
			fmt.Fprintf(w, "  [%d] idle\n", t.Index)
			continue
		}
		fmt.Fprintf(w, "  [%d] pid=%d session=%s queued=%d\n", t.Index, t.PID, t.OwnerID, t.Depth)
	}
}

func runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
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

	a, err := arena.Attach(cfg.Arena.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to attach: %v\n", err)
		return 1
	}
	defer a.Close()

	if err := tui.Run(a, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Monitor failed: %v\n", err)
		return 1
	}
	return 0
}
