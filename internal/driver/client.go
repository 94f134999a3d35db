// Package driver is the tenant side of the device: it attaches to a running
// firmware's arena, claims a slot and submits commands.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/channel"
	"github.com/mattjoyce/vgpusim/internal/command"
)

// ErrStagingOverflow is returned by Stage for more pixels than the staging
// buffer holds.
var ErrStagingOverflow = errors.New("staging buffer overflow")

// ErrDeviceStopped is returned by Drain when the firmware stopped with
// commands of this tenant still queued.
var ErrDeviceStopped = errors.New("device stopped")

// DrainPoll is how often Drain rereads the queue.
const DrainPoll = 10 * time.Millisecond

// Telemetry is the lock-free view of the device a driver may read at will.
type Telemetry struct {
	Temperature    float32 `json:"temperature"`
	Heartbeat      uint64  `json:"heartbeat"`
	FrameCounter   uint32  `json:"frame_counter"`
	WatchdogResets uint32  `json:"watchdog_resets"`
	Running        bool    `json:"running"`
	QueueDepth     int     `json:"queue_depth"`
}

func (t Telemetry) String() string {
	return fmt.Sprintf("temp=%.2fC heartbeat=%d frames=%d resets=%d queue=%d running=%t",
		t.Temperature, t.Heartbeat, t.FrameCounter, t.WatchdogResets, t.QueueDepth, t.Running)
}

// Client owns one tenant slot until Close.
type Client struct {
	arena  *arena.Arena
	ch     *channel.Channel
	id     uuid.UUID
	owned  bool
	logger *slog.Logger
}

// Connect attaches to the arena at path and claims tenant.
func Connect(path string, tenant int, logger *slog.Logger) (*Client, error) {
	a, err := arena.Attach(path)
	if err != nil {
		return nil, err
	}
	c, err := NewClient(a, tenant, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// NewClient claims tenant on an arena the caller already holds. Close will
// release the slot but leave the arena mapped. logger is expected to carry
// the tenant attribute already (see log.WithTenant).
func NewClient(a *arena.Arena, tenant int, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default().With("tenant", tenant)
	}
	ch, err := channel.Open(a, tenant)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	if err := ch.Attach(uint32(os.Getpid()), id); err != nil {
		return nil, err
	}
	c := &Client{
		arena:  a,
		ch:     ch,
		id:     id,
		logger: logger.With("component", "driver", "session", id.String()),
	}
	c.logger.Info("tenant attached")
	return c, nil
}

// Tenant is the claimed slot index.
func (c *Client) Tenant() int { return c.ch.Index() }

// SessionID identifies this attachment in status output.
func (c *Client) SessionID() uuid.UUID { return c.id }

// Submit enqueues cmd, blocking while the tenant queue is full.
func (c *Client) Submit(cmd command.Command) {
	c.ch.Enqueue(cmd)
	c.logger.Debug("command submitted", "kind", cmd.Kind().String())
}

// Stage copies pixels into the DMA staging buffer, row-major, for a later
// DMA_TEXTURE. The firmware reads the buffer when it executes the transfer,
// so restaging before that point changes what is copied.
func (c *Client) Stage(pixels []uint32) error {
	buf := c.ch.Staging()
	if len(pixels) > len(buf) {
		return fmt.Errorf("%w: %d pixels, capacity %d", ErrStagingOverflow, len(pixels), len(buf))
	}
	copy(buf, pixels)
	return nil
}

// Telemetry reads the shared status words.
func (c *Client) Telemetry() Telemetry {
	return Telemetry{
		Temperature:    c.arena.Temperature(),
		Heartbeat:      c.arena.Heartbeat(),
		FrameCounter:   c.arena.FrameCounter(),
		WatchdogResets: c.arena.WatchdogResets(),
		Running:        c.arena.Running(),
		QueueDepth:     c.ch.Len(),
	}
}

// Drain blocks until the scheduler has taken every queued command of this
// tenant. The slot must stay active meanwhile, since inactive slots are not
// served; call Drain before Close.
func (c *Client) Drain(ctx context.Context) error {
	ticker := time.NewTicker(DrainPoll)
	defer ticker.Stop()

	for {
		if c.ch.Empty() {
			return nil
		}
		if !c.arena.Running() {
			return fmt.Errorf("%w with %d commands queued for tenant %d", ErrDeviceStopped, c.ch.Len(), c.Tenant())
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("drain tenant %d: %w", c.Tenant(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Close releases the slot. Commands still queued are abandoned.
func (c *Client) Close() error {
	if c.ch == nil {
		return nil
	}
	c.ch.Detach()
	c.ch = nil
	c.logger.Info("tenant detached")
	if c.owned {
		return c.arena.Close()
	}
	return nil
}
