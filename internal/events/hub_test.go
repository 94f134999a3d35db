package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	h := NewHub(4)
	ch, cancel := h.Subscribe()
	defer cancel()

	h.Publish(ChecksumVerified, ChecksumPayload{Tenant: 1, A: 100, B: 250, Result: 350, Match: true})

	ev := <-ch
	assert.Equal(t, ChecksumVerified, ev.Type)
	assert.Equal(t, int64(1), ev.ID)

	var p ChecksumPayload
	require.NoError(t, ev.Decode(&p))
	assert.Equal(t, uint32(350), p.Result)
	assert.True(t, p.Match)
}

func TestRingOverwritesOldest(t *testing.T) {
	h := NewHub(2)
	h.Publish(CommandExecuted, nil)
	h.Publish(CommandExecuted, nil)
	h.Publish(SchedulerExit, nil)

	snap := h.SnapshotSince(0)
	require.Len(t, snap, 2)
	assert.Equal(t, int64(2), snap[0].ID)
	assert.Equal(t, int64(3), snap[1].ID)

	assert.Len(t, h.SnapshotSince(2), 1)
	assert.Equal(t, 1, h.Count(SchedulerExit))
	assert.Equal(t, 1, h.Count(CommandExecuted))
}

func TestNilPayloadIsEmptyObject(t *testing.T) {
	h := NewHub(1)
	h.Publish(ThermalThrottled, nil)
	assert.Equal(t, "{}", string(h.SnapshotSince(0)[0].Data))
}

func TestCancelClosesChannel(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after cancel must not panic on the closed channel.
	h.Publish(CommandExecuted, nil)
	cancel()
}

func TestNilHubDropsEvents(t *testing.T) {
	var h *Hub
	assert.NotPanics(t, func() { h.Publish(WatchdogAlert, nil) })
}
