package main

import (
	"fmt"
	"os"

	"github.com/mattjoyce/vgpusim/internal/config"
)

const version = "0.1.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	if len(argv) < 1 {
		printUsage(os.Stderr)
		return 1
	}

	cmd := argv[0]
	args := argv[1:]

	switch cmd {
	// --- NOUNS ---
	case "firmware":
		return runFirmwareNoun(args)
	case "driver":
		return runDriverNoun(args)
	case "config":
		return runConfigNoun(args)

	// --- ROOT COMMANDS ---
	case "status":
		return runStatus(args)
	case "monitor":
		return runMonitor(args)
	case "version":
		fmt.Printf("vgpu version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage(os.Stderr)
		return 1
	}
}

func printUsage(w *os.File) {
	fmt.Fprint(w, `vgpu - multi-tenant virtual GPU emulator over shared memory

Usage:
  vgpu <noun> <action> [flags]

Firmware Commands:
  firmware start    Create the shared arena and run scheduler + watchdog

Driver Commands:
  driver run        Attach as a tenant and submit commands from a script or stdin
  driver submit     Attach as a tenant and submit a single command
  driver stress     Flood a tenant queue and report backpressure

Config Commands:
  config check      Validate configuration and environment
  config get <path> Print one configuration value

Device Commands:
  status            Print device telemetry from a running firmware
  monitor           Live terminal monitor

General:
  version           Show version information
  help              Show this help message

Use 'vgpu <noun> help' for action-specific flags.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// loadConfig loads the configuration and applies the --arena override.
func loadConfig(configPath, arenaPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if arenaPath != "" {
		cfg.Arena.Path = arenaPath
	}
	return cfg, nil
}
