package driver

import (
	"context"
	"time"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/command"
)

// StressReport summarizes a Flood run.
type StressReport struct {
	Submitted int `json:"submitted"`
	// Backpressure counts submissions that found the queue full and had to
	// wait for the scheduler.
	Backpressure int           `json:"backpressure"`
	Elapsed      time.Duration `json:"elapsed"`
	Telemetry    Telemetry     `json:"telemetry"`
}

// Flood submits n small draws as fast as the queue accepts them, followed by
// EXIT when exit is set. ctx is checked between submissions; a submission
// already blocked on a full queue is not interrupted.
func (c *Client) Flood(ctx context.Context, n int, exit bool) (StressReport, error) {
	var r StressReport
	start := time.Now()

	submit := func(cmd command.Command) {
		if c.ch.Full() {
			r.Backpressure++
		}
		c.Submit(cmd)
		r.Submitted++
	}

	for i := range n {
		if err := ctx.Err(); err != nil {
			r.Elapsed = time.Since(start)
			r.Telemetry = c.Telemetry()
			return r, err
		}
		submit(floodDraw(i))
	}
	if exit {
		submit(command.Exit{})
	}

	r.Elapsed = time.Since(start)
	r.Telemetry = c.Telemetry()
	c.logger.Info("flood complete",
		"submitted", r.Submitted,
		"backpressure", r.Backpressure,
		"elapsed", r.Elapsed)
	return r, nil
}

// floodDraw walks a 50x50 rectangle across the framebuffer.
func floodDraw(i int) command.DrawRect {
	const side = 50
	cols := arena.Width / side
	rows := arena.Height / side
	return command.DrawRect{
		X:     uint32((i % cols) * side),
		Y:     uint32((i / cols % rows) * side),
		W:     side,
		H:     side,
		Color: 0xFF000000 | uint32(i*0x2F1B)&0x00FFFFFF,
	}
}
