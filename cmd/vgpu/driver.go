package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattjoyce/vgpusim/internal/command"
	"github.com/mattjoyce/vgpusim/internal/driver"
	"github.com/mattjoyce/vgpusim/internal/log"
)

func runDriverNoun(args []string) int {
	if len(args) < 1 {
		printDriverHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printDriverHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]
	if hasHelpFlag(actionArgs) {
		printDriverHelp(os.Stdout)
		return 0
	}

	switch action {
	case "run":
		return runDriverRun(actionArgs)
	case "submit":
		return runDriverSubmit(actionArgs)
	case "stress":
		return runDriverStress(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown driver action: %s\n", action)
		printDriverHelp(os.Stderr)
		return 1
	}
}

func printDriverHelp(w *os.File) {
	fmt.Fprint(w, `Usage: vgpu driver <action> [flags]

Actions:
  run     Submit commands from --script (or stdin), one per line
  submit  Submit a single command given as arguments
  stress  Flood the queue with draws and report backpressure

Each action returns once the firmware has taken every submitted command.

Flags:
  --config PATH   Configuration file or directory
  --arena PATH    Override arena.path
  --tenant N      Tenant slot to claim (0 or 1)
  --count N       (stress) number of draws, default 100
  --no-exit       (stress) do not send EXIT afterwards
  --json          (stress) print the report as JSON

Commands:
  nop | clear COLOR | draw X Y W H COLOR | dma X Y W H
  checksum A B | hang | exit
Script directives:
  stage COLOR [N] | sleep DURATION
`)
}

func runDriverRun(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	arenaPath := fs.String("arena", "", "Override arena.path")
	tenant := fs.Int("tenant", 0, "Tenant slot to claim")
	scriptPath := fs.String("script", "-", "Command script, '-' for stdin")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	var in io.Reader = os.Stdin
	if *scriptPath != "-" {
		f, err := os.Open(*scriptPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open script: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	client, code := connectDriver(*configPath, *arenaPath, *tenant)
	if client == nil {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Commands submitted before a script error are still served.
	scriptErr := client.RunScript(in, os.Stdout)
	code = drainAndClose(ctx, client)
	if scriptErr != nil {
		fmt.Fprintf(os.Stderr, "Script failed: %v\n", scriptErr)
		return 1
	}
	return code
}

func runDriverSubmit(args []string) int {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	arenaPath := fs.String("arena", "", "Override arena.path")
	tenant := fs.Int("tenant", 0, "Tenant slot to claim")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: vgpu driver submit [flags] <command> [args...]")
		return 1
	}

	cmd, err := command.Parse(strings.Join(fs.Args(), " "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid command: %v\n", err)
		return 1
	}

	client, code := connectDriver(*configPath, *arenaPath, *tenant)
	if client == nil {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client.Submit(cmd)
	fmt.Printf("[tenant %d] %s -> %s\n", client.Tenant(), command.Format(cmd), client.Telemetry())
	return drainAndClose(ctx, client)
}

func runDriverStress(args []string) int {
	fs := flag.NewFlagSet("stress", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	arenaPath := fs.String("arena", "", "Override arena.path")
	tenant := fs.Int("tenant", 0, "Tenant slot to claim")
	count := fs.Int("count", 100, "Number of draw commands")
	noExit := fs.Bool("no-exit", false, "Do not send EXIT after the flood")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if *count < 0 {
		fmt.Fprintln(os.Stderr, "--count must not be negative")
		return 1
	}

	client, code := connectDriver(*configPath, *arenaPath, *tenant)
	if client == nil {
		return code
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := client.Flood(ctx, *count, !*noExit)
	code = drainAndClose(ctx, client)
	if *jsonOut {
		out, jerr := json.MarshalIndent(report, "", "  ")
		if jerr != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode report: %v\n", jerr)
			return 1
		}
		fmt.Println(string(out))
	} else {
		fmt.Printf("Commands sent:      %d\n", report.Submitted)
		fmt.Printf("Backpressure waits: %d\n", report.Backpressure)
		fmt.Printf("Elapsed:            %s\n", report.Elapsed)
		fmt.Printf("Device:             %s\n", report.Telemetry)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Flood interrupted: %v\n", err)
		return 1
	}
	return code
}

// drainAndClose waits until the firmware has taken every queued command and
// then releases the slot. Closing first would leave the queue unserved.
func drainAndClose(ctx context.Context, client *driver.Client) int {
	err := client.Drain(ctx)
	if cerr := client.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to drain queue: %v\n", err)
		return 1
	}
	return 0
}

func connectDriver(configPath, arenaPath string, tenant int) (*driver.Client, int) {
	cfg, err := loadConfig(configPath, arenaPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, 1
	}
	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)

	client, err := driver.Connect(cfg.Arena.Path, tenant, log.WithTenant(tenant))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		return nil, 1
	}
	return client, 0
}
