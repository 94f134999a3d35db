package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/events"
)

// observe publishes the transitions between two snapshots.
func observe(hub *events.Hub, prev, next arena.Status, limit float32) {
	for i := range next.Tenants {
		if i >= len(prev.Tenants) {
			break
		}
		was, is := prev.Tenants[i], next.Tenants[i]
		switch {
		case !was.Active && is.Active:
			hub.Publish(events.TenantAttached, events.TenantPayload{Tenant: i, PID: is.PID, OwnerID: is.OwnerID})
		case was.Active && !is.Active:
			hub.Publish(events.TenantDetached, events.TenantPayload{Tenant: i, PID: was.PID})
		}
	}
	if next.WatchdogResets > prev.WatchdogResets {
		hub.Publish(events.WatchdogAlert, events.WatchdogPayload{
			Heartbeat: next.Heartbeat,
			Resets:    next.WatchdogResets,
			Restored:  next.Temperature,
		})
	}
	if prev.Temperature <= limit && next.Temperature > limit {
		hub.Publish(events.ThermalThrottled, events.ThermalPayload{Temperature: next.Temperature, Limit: limit})
	}
	if next.Checksums > prev.Checksums {
		hub.Publish(events.ChecksumVerified, events.ChecksumPayload{Result: next.LastChecksum, Match: true})
	}
	if prev.Running && !next.Running {
		hub.Publish(events.SchedulerExit, map[string]any{"frames": next.FrameCounter})
	}
}

func renderEventStream(log []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(log) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENTS"),
			theme.Dim.Render("  Waiting for device activity..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	// Newest first.
	for i := len(log) - 1; i >= 0 && len(lines) < 8; i-- {
		lines = append(lines, formatEvent(log[i], theme))
	}

	eventsText := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENTS"),
		eventsText,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Local().Format(time.TimeOnly))

	var typeStyle lipgloss.Style
	switch e.Type {
	case events.WatchdogAlert:
		typeStyle = theme.StatusFailed
	case events.ThermalThrottled:
		typeStyle = theme.StatusWarn
	case events.TenantAttached, events.ChecksumVerified:
		typeStyle = theme.StatusOK
	case events.SchedulerExit:
		typeStyle = theme.Highlight
	default:
		typeStyle = theme.Dim
	}

	typeName := typeStyle.Render(fmt.Sprintf("%-18s", e.Type))
	return fmt.Sprintf("%s %s %s", ts, typeName, extractEventDesc(e))
}

func extractEventDesc(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	var parts []string

	if tenant, ok := data["tenant"].(float64); ok {
		parts = append(parts, fmt.Sprintf("tenant %d", int(tenant)))
	}
	if pid, ok := data["pid"].(float64); ok {
		parts = append(parts, fmt.Sprintf("pid %d", int(pid)))
	}
	if resets, ok := data["resets"].(float64); ok {
		parts = append(parts, fmt.Sprintf("reset #%d", int(resets)))
	}
	if temp, ok := data["temperature"].(float64); ok {
		parts = append(parts, fmt.Sprintf("%.1f°C", temp))
	}
	if result, ok := data["result"].(float64); ok {
		parts = append(parts, fmt.Sprintf("= %d", uint32(result)))
	}
	if frames, ok := data["frames"].(float64); ok {
		parts = append(parts, fmt.Sprintf("after %d frames", int(frames)))
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}

	return strings.Join(parts, " ")
}
