package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/command"
	"github.com/mattjoyce/vgpusim/internal/config"
	"github.com/mattjoyce/vgpusim/internal/driver"
	"github.com/mattjoyce/vgpusim/internal/events"
	"github.com/mattjoyce/vgpusim/internal/executor"
	"github.com/mattjoyce/vgpusim/internal/log"
	"github.com/mattjoyce/vgpusim/internal/scheduler"
	"github.com/mattjoyce/vgpusim/internal/watchdog"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func testConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	arenaPath := filepath.Join(dir, "vgpu_ram.bin")
	cfgPath := writeConfig(t, "service:\n  log_level: error\narena:\n  path: "+arenaPath+
		"\n  lock_path: "+filepath.Join(dir, "vgpu.lock")+"\n")
	return cfgPath, arenaPath
}

func TestRunWithoutArgs(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int { return run(nil) })
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage:")
}

func TestRunUnknownCommand(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int { return run([]string{"reboot"}) })
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: reboot")
}

func TestRunVersionAndHelp(t *testing.T) {
	code, stdout, _ := captureOutputWithExitCode(t, func() int { return run([]string{"version"}) })
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "vgpu version "+version)

	code, stdout, _ = captureOutputWithExitCode(t, func() int { return run([]string{"help"}) })
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "firmware start")
	assert.Contains(t, stdout, "driver run")
}

func TestNounHelp(t *testing.T) {
	for _, noun := range []string{"firmware", "driver", "config"} {
		t.Run(noun, func(t *testing.T) {
			code, stdout, _ := captureOutputWithExitCode(t, func() int { return run([]string{noun, "help"}) })
			assert.Equal(t, 0, code)
			assert.Contains(t, stdout, "vgpu "+noun)

			code, _, stderr := captureOutputWithExitCode(t, func() int { return run([]string{noun, "explode"}) })
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, "Unknown "+noun+" action")
		})
	}
}

func TestConfigGet(t *testing.T) {
	cfgPath := writeConfig(t, "thermal:\n  limit: 85\n")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigGet([]string{"thermal.limit", "--config", cfgPath})
	})
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "85\n", stdout)
}

func TestConfigGetSectionJSON(t *testing.T) {
	cfgPath := writeConfig(t, "watchdog:\n  threshold: 5\n")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigGet([]string{"--config", cfgPath, "--json", "watchdog"})
	})
	require.Equal(t, 0, code, stderr)

	var section map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &section))
	assert.EqualValues(t, 5, section["threshold"])
}

func TestConfigGetUnknownPath(t *testing.T) {
	cfgPath := writeConfig(t, "service:\n  name: lab\n")

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigGet([]string{"thermal.nope", "--config", cfgPath})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not found")
}

func TestConfigCheck(t *testing.T) {
	cfgPath, _ := testConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", cfgPath, "--json"})
	})
	require.Equal(t, 0, code, stderr)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.Equal(t, true, result["valid"])
}

func TestConfigCheckInvalid(t *testing.T) {
	cfgPath := writeConfig(t, "thermal:\n  ambient: 60\n  limit: 50\n")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", cfgPath, "--json"})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, `"valid": false`)
}

func TestStatusWithoutFirmware(t *testing.T) {
	cfgPath, _ := testConfig(t)

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runStatus([]string{"--config", cfgPath})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "arena not found")
}

func TestStatusJSON(t *testing.T) {
	cfgPath, arenaPath := testConfig(t)
	fw, err := arena.Create(arenaPath, 40)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Teardown() })
	fw.AddFrame()
	fw.RecordChecksum(350)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runStatus([]string{"--config", cfgPath, "--json"})
	})
	require.Equal(t, 0, code, stderr)

	var report statusReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.True(t, report.Running)
	assert.EqualValues(t, 1, report.FrameCounter)
	assert.EqualValues(t, 350, report.LastChecksum)
	assert.Len(t, report.Tenants, arena.MaxTenants)
	assert.Equal(t, fw.FramebufferDigest(), report.FramebufferDigest)
}

func TestStatusHuman(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, statusReport{
		Status: arena.Status{
			Path:        "/dev/shm/vgpu_ram.bin",
			Running:     true,
			Temperature: 41.75,
			Tenants: []arena.TenantStatus{
				{Index: 0, Active: true, PID: 42, OwnerID: "abc", Depth: 3},
				{Index: 1},
			},
		},
		FramebufferDigest: "d1",
	})

	out := buf.String()
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "41.75")
	assert.Contains(t, out, "[0] pid=42 session=abc queued=3")
	assert.Contains(t, out, "[1] idle")
}

// startFirmware serves a in the background. The channel yields the exit
// code; the buffer holds what the firmware printed and may be read once the
// code has arrived.
func startFirmware(t *testing.T, a *arena.Arena) (<-chan int, *bytes.Buffer) {
	t.Helper()
	sched, wd, hub := newFirmware(t, a, nil)

	ctx, cancel := context.WithCancel(context.Background())
	out := &bytes.Buffer{}
	result := make(chan int, 1)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		code, _ := serveFirmware(ctx, sched, wd, hub, out, log.New(io.Discard, "error", "json"))
		result <- code
	}()
	// Registered after the arena's Teardown cleanup, so it runs first.
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return result, out
}

func waitFirmware(t *testing.T, result <-chan int) int {
	t.Helper()
	select {
	case code := <-result:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("firmware did not stop")
		return -1
	}
}

func createArena(t *testing.T, path string) *arena.Arena {
	t.Helper()
	fw, err := arena.Create(path, 40)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fw.Teardown() })
	return fw
}

func TestDriverSubmitReachesFirmware(t *testing.T) {
	cfgPath, arenaPath := testConfig(t)
	fw := createArena(t, arenaPath)
	result, _ := startFirmware(t, fw)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runDriverSubmit([]string{"--config", cfgPath, "--tenant", "1", "draw", "0", "0", "10", "10", "0xFF0000"})
	})
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "[tenant 1] draw 0 0 10 10 0x00FF0000")

	code, stdout, stderr = captureOutputWithExitCode(t, func() int {
		return runDriverSubmit([]string{"--config", cfgPath, "--tenant", "1", "exit"})
	})
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "[tenant 1] exit")

	assert.Equal(t, 0, waitFirmware(t, result))
	assert.False(t, fw.Running())
	assert.Equal(t, uint32(0x00FF0000), fw.Framebuffer()[5*arena.Width+5])
	assert.Equal(t, uint32(2), fw.FrameCounter())
	assert.Zero(t, fw.Tenant(1).Depth())
	assert.False(t, fw.Tenant(1).Active(), "slot must be released on exit")
}

func TestDriverSubmitStoppedDevice(t *testing.T) {
	cfgPath, arenaPath := testConfig(t)
	fw := createArena(t, arenaPath)
	fw.SetRunning(false)

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runDriverSubmit([]string{"--config", cfgPath, "nop"})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "device stopped")
	assert.False(t, fw.Tenant(0).Active())
}

func TestDriverSubmitInvalidCommand(t *testing.T) {
	cfgPath, _ := testConfig(t)

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runDriverSubmit([]string{"--config", cfgPath, "draw", "1"})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Invalid command")
}

func TestDriverRunScriptReachesFirmware(t *testing.T) {
	cfgPath, arenaPath := testConfig(t)
	fw := createArena(t, arenaPath)
	result, out := startFirmware(t, fw)

	script := filepath.Join(t.TempDir(), "job.txt")
	require.NoError(t, os.WriteFile(script, []byte(
		"# demo\nclear 0x0\ndraw 10 10 20 20 0xFF00FF00\nchecksum 100 250\nexit\n"), 0o600))

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runDriverRun([]string{"--config", cfgPath, "--script", script})
	})
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, 4, strings.Count(stdout, "[tenant 0]"))

	assert.Equal(t, 0, waitFirmware(t, result))
	assert.Equal(t, uint32(0xFF00FF00), fw.Framebuffer()[15*arena.Width+15])
	sum, _ := fw.LastChecksum()
	assert.Equal(t, uint32(350), sum)
	assert.Contains(t, out.String(), "checksum 100 + 250 = 350 (verified)")
	assert.Contains(t, out.String(), "shutdown requested by tenant 0 after 4 frames")
}

func TestDriverStressJSON(t *testing.T) {
	cfgPath, arenaPath := testConfig(t)
	fw := createArena(t, arenaPath)
	result, _ := startFirmware(t, fw)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runDriverStress([]string{"--config", cfgPath, "--count", "5", "--json"})
	})
	require.Equal(t, 0, code, stderr)

	var report driver.StressReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 6, report.Submitted)

	assert.Equal(t, 0, waitFirmware(t, result))
	assert.Equal(t, uint32(6), fw.FrameCounter())
	assert.Zero(t, fw.Tenant(0).Depth())
}

func newFirmware(t *testing.T, a *arena.Arena, mutate func(*config.Config), opts ...executor.Option) (*scheduler.Scheduler, *watchdog.Watchdog, *events.Hub) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Scheduler.CostScale = 0
	cfg.Scheduler.IdleSleep = time.Millisecond
	cfg.Scheduler.ThrottleSleep = time.Millisecond
	cfg.Watchdog.Interval = 10 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	logger := log.New(io.Discard, "error", "json")
	hub := events.NewHub(64)
	exec := executor.New(a, nil, append(opts, executor.WithLogger(logger))...)
	return scheduler.New(a, exec, cfg, hub, logger), watchdog.New(a, cfg.Watchdog, hub, logger), hub
}

func TestServeFirmwareStopsOnExit(t *testing.T) {
	a := arena.NewMemory(40)
	sched, wd, hub := newFirmware(t, a, nil)

	client, err := driver.NewClient(a, 0, nil)
	require.NoError(t, err)
	client.Submit(command.Checksum{A: 100, B: 250})
	client.Submit(command.Exit{})

	var out bytes.Buffer
	code, abandoned := serveFirmware(context.Background(), sched, wd, hub, &out, log.New(io.Discard, "error", "json"))
	assert.Equal(t, 0, code)
	assert.False(t, abandoned)
	assert.False(t, a.Running())
	assert.Contains(t, out.String(), "checksum 100 + 250 = 350 (verified)")
	assert.Contains(t, out.String(), "shutdown requested by tenant 0 after 2 frames")
}

func TestServeFirmwareSignal(t *testing.T) {
	a := arena.NewMemory(40)
	sched, wd, hub := newFirmware(t, a, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	code, abandoned := serveFirmware(ctx, sched, wd, hub, io.Discard, log.New(io.Discard, "error", "json"))
	assert.Equal(t, 0, code)
	assert.False(t, abandoned)
}

func TestServeFirmwareAbandonsHungScheduler(t *testing.T) {
	old := shutdownGrace
	shutdownGrace = 20 * time.Millisecond
	t.Cleanup(func() { shutdownGrace = old })

	release := make(chan struct{})
	a := arena.NewMemory(40)
	sched, _, hub := newFirmware(t, a, nil, executor.WithSpin(func() { <-release }))
	defer close(release)

	client, err := driver.NewClient(a, 0, nil)
	require.NoError(t, err)
	client.Submit(command.Hang{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	code, abandoned := serveFirmware(ctx, sched, nil, hub, io.Discard, log.New(io.Discard, "error", "json"))
	assert.Equal(t, 1, code)
	assert.True(t, abandoned)
}
