// Package arena owns the shared memory region that the firmware and every
// driver map. It defines the bit-exact layout and the only sanctioned ways to
// read and write the header words.
//
// An Arena is an explicit handle: components are constructed with the handle
// they operate on. NewMemory gives tests a heap-backed arena with the same
// layout and the same synchronization words.
package arena

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/mattjoyce/vgpusim/internal/storage"
)

var (
	// ErrNotFound means no region exists at the path; the firmware has not
	// been started.
	ErrNotFound = errors.New("arena not found")
	// ErrLayoutMismatch means the region exists but was written by an
	// incompatible build (wrong size, magic or version).
	ErrLayoutMismatch = errors.New("arena layout mismatch")
)

// Arena is a handle to a mapped region.
type Arena struct {
	path string
	data []byte
	l    *layout
}

// Create allocates the backing file at path, sizes it exactly, maps it and
// initialises the header and every tenant's synchronization words.
// Only the firmware calls Create.
func Create(path string, baseline float32) (*Arena, error) {
	if err := storage.ValidateBackingPath(path); err != nil {
		return nil, fmt.Errorf("create arena: %w", err)
	}

	data, err := createMapping(path, Size)
	if err != nil {
		return nil, fmt.Errorf("create arena %s: %w", path, err)
	}

	a := &Arena{path: path, data: data, l: (*layout)(unsafe.Pointer(&data[0]))}
	clear(a.data)
	a.init(baseline)
	return a, nil
}

// Attach maps an existing region without reinitialising it.
func Attach(path string) (*Arena, error) {
	data, err := openMapping(path, Size)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s: start the firmware first", ErrNotFound, path)
		}
		return nil, fmt.Errorf("attach arena %s: %w", path, err)
	}

	a := &Arena{path: path, data: data, l: (*layout)(unsafe.Pointer(&data[0]))}
	magic := atomic.LoadUint32(&a.l.magic)
	version := atomic.LoadUint32(&a.l.version)
	if magic != Magic || version != LayoutVersion {
		_ = a.Close()
		return nil, fmt.Errorf("%w: magic 0x%08x version %d, want 0x%08x version %d",
			ErrLayoutMismatch, magic, version, Magic, LayoutVersion)
	}
	return a, nil
}

// NewMemory returns an initialised arena backed by process memory.
func NewMemory(baseline float32) *Arena {
	a := &Arena{l: new(layout)}
	a.init(baseline)
	return a
}

func (a *Arena) init(baseline float32) {
	for i := range a.l.tenants {
		t := &a.l.tenants[i]
		atomic.StoreUint32(&t.lock, 0)
		atomic.StoreUint32(&t.notFull, 0)
		atomic.StoreUint32(&t.notEmpty, 0)
		atomic.StoreUint32(&t.head, 0)
		atomic.StoreUint32(&t.tail, 0)
		atomic.StoreUint32(&t.active, 0)
	}
	atomic.StoreUint32(&a.l.temperature, math.Float32bits(baseline))
	atomic.StoreUint32(&a.l.version, LayoutVersion)
	atomic.StoreUint32(&a.l.running, 1)
	atomic.StoreUint32(&a.l.magic, Magic)
}

// Path returns the backing path, empty for memory arenas.
func (a *Arena) Path() string { return a.path }

// Close unmaps the region. The backing file stays in place.
func (a *Arena) Close() error {
	if a.data == nil {
		return nil
	}
	data := a.data
	a.data = nil
	return unmap(data)
}

// Teardown unmaps and removes the backing file. Firmware only.
func (a *Arena) Teardown() error {
	closeErr := a.Close()
	if a.path == "" {
		return closeErr
	}
	if err := os.Remove(a.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(closeErr, fmt.Errorf("remove %s: %w", a.path, err))
	}
	return closeErr
}

// Running reports the system liveness flag.
func (a *Arena) Running() bool { return atomic.LoadUint32(&a.l.running) != 0 }

// SetRunning updates the liveness flag.
func (a *Arena) SetRunning(v bool) {
	var w uint32
	if v {
		w = 1
	}
	atomic.StoreUint32(&a.l.running, w)
}

// FrameCounter returns the number of executed commands.
func (a *Arena) FrameCounter() uint32 { return atomic.LoadUint32(&a.l.frameCounter) }

// AddFrame bumps the frame counter.
func (a *Arena) AddFrame() uint32 { return atomic.AddUint32(&a.l.frameCounter, 1) }

// Heartbeat returns the scheduler's liveness counter.
func (a *Arena) Heartbeat() uint64 { return atomic.LoadUint64(&a.l.heartbeat) }

// Beat advances the heartbeat. The scheduler is the only writer.
func (a *Arena) Beat() uint64 { return atomic.AddUint64(&a.l.heartbeat, 1) }

// WatchdogResets returns how many times the watchdog repaired the device.
func (a *Arena) WatchdogResets() uint32 { return atomic.LoadUint32(&a.l.watchdogResets) }

// AddWatchdogReset records one watchdog recovery.
func (a *Arena) AddWatchdogReset() uint32 { return atomic.AddUint32(&a.l.watchdogResets, 1) }

// Temperature returns the current device temperature.
func (a *Arena) Temperature() float32 {
	return math.Float32frombits(atomic.LoadUint32(&a.l.temperature))
}

// StoreTemperature overwrites the temperature, retrying until no concurrent
// writer intervened between load and store.
func (a *Arena) StoreTemperature(v float32) {
	a.UpdateTemperature(func(float32) float32 { return v })
}

// AddTemperature adds delta and returns the new value.
func (a *Arena) AddTemperature(delta float32) float32 {
	return a.UpdateTemperature(func(t float32) float32 { return t + delta })
}

// UpdateTemperature applies fn with a compare-and-swap retry loop and
// returns the value stored.
func (a *Arena) UpdateTemperature(fn func(float32) float32) float32 {
	for {
		old := atomic.LoadUint32(&a.l.temperature)
		next := fn(math.Float32frombits(old))
		if atomic.CompareAndSwapUint32(&a.l.temperature, old, math.Float32bits(next)) {
			return next
		}
	}
}

// RecordChecksum publishes a verified CHECKSUM result.
func (a *Arena) RecordChecksum(v uint32) {
	atomic.StoreUint32(&a.l.checksumLast, v)
	atomic.AddUint32(&a.l.checksumCount, 1)
}

// LastChecksum returns the most recent verified CHECKSUM result and how many
// have been computed.
func (a *Arena) LastChecksum() (value, count uint32) {
	return atomic.LoadUint32(&a.l.checksumLast), atomic.LoadUint32(&a.l.checksumCount)
}

// Framebuffer exposes the Width×Height pixel array, row-major.
// Only the executor writes it.
func (a *Arena) Framebuffer() []uint32 { return a.l.framebuffer[:] }

// Tenant returns slot i. It panics when i is out of range.
func (a *Arena) Tenant(i int) *TenantContext { return &a.l.tenants[i] }
