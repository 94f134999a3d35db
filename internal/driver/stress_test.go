package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/channel"
	"github.com/mattjoyce/vgpusim/internal/command"
)

func TestFloodWithinCapacity(t *testing.T) {
	a := arena.NewMemory(40)
	c, err := NewClient(a, 0, quietLogger())
	require.NoError(t, err)
	defer c.Close()

	r, err := c.Flood(context.Background(), 10, true)
	require.NoError(t, err)
	assert.Equal(t, 11, r.Submitted)
	assert.Zero(t, r.Backpressure)
	assert.Equal(t, 11, r.Telemetry.QueueDepth)

	cmds := drain(t, a, 0)
	require.Len(t, cmds, 11)
	assert.Equal(t, command.KindDrawRect, cmds[0].Kind())
	assert.Equal(t, command.Exit{}, cmds[10])
}

func TestFloodReportsBackpressure(t *testing.T) {
	a := arena.NewMemory(40)
	c, err := NewClient(a, 0, quietLogger())
	require.NoError(t, err)
	defer c.Close()

	consumer, err := channel.Open(a, 0)
	require.NoError(t, err)

	done := make(chan int)
	go func() {
		for !consumer.Full() {
			time.Sleep(time.Millisecond)
		}
		// Leave the producer time to find the queue full.
		time.Sleep(50 * time.Millisecond)
		n := 0
		for {
			cmd, ok := consumer.TryDequeue()
			if !ok {
				time.Sleep(time.Millisecond)
				continue
			}
			n++
			if cmd.Kind() == command.KindExit {
				done <- n
				return
			}
		}
	}()

	r, err := c.Flood(context.Background(), channel.Capacity+5, true)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, r.Backpressure, 1)
	assert.Equal(t, channel.Capacity+6, <-done)
}

func TestFloodCancelled(t *testing.T) {
	a := arena.NewMemory(40)
	c, err := NewClient(a, 0, quietLogger())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := c.Flood(ctx, 10, true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, r.Submitted)
}

func TestFloodDrawStaysOnScreen(t *testing.T) {
	for i := range 500 {
		d := floodDraw(i)
		assert.LessOrEqual(t, int(d.X+d.W), arena.Width)
		assert.LessOrEqual(t, int(d.Y+d.H), arena.Height)
	}
}
