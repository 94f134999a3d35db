package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/vgpusim/internal/arena"
)

// deviceState classifies a snapshot for the header.
func deviceState(s arena.Status, limit float32, sinceBeat, stallAfter time.Duration) string {
	switch {
	case !s.Running:
		return "STOPPED"
	case s.Heartbeat > 0 && sinceBeat > stallAfter:
		return "STALLED"
	case s.Temperature > limit:
		return "THROTTLED"
	default:
		return "RUNNING"
	}
}

func renderHeader(m *Model, now time.Time, width int) string {
	innerWidth := width - 4
	theme := m.theme
	s := m.status

	state := deviceState(s, m.limit, m.ticker.Since(now), m.stallAfter)
	var stateText string
	switch state {
	case "RUNNING":
		stateText = theme.StatusOK.Render(state)
	case "THROTTLED":
		stateText = theme.StatusWarn.Render(state)
	case "STALLED":
		stateText = theme.StatusFailed.Render(state)
	default:
		stateText = theme.StatusStopped.Render(state)
	}

	tickerStr := theme.Highlight.Render(m.ticker.Current())
	clock := theme.Dim.Render(now.Format("15:04:05"))
	titleText := fmt.Sprintf(" VGPU MONITOR %s", tickerStr)

	titleWidth := lipgloss.Width(titleText)
	clockWidth := lipgloss.Width(clock)
	pad := innerWidth - titleWidth - clockWidth - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	statsLine := fmt.Sprintf(" %s  heartbeat %d  frames %d  watchdog resets %d  checksum %d (%d)",
		stateText, s.Heartbeat, s.FrameCounter, s.WatchdogResets, s.LastChecksum, s.Checksums)

	tempLine := fmt.Sprintf(" %6.2f°C %s limit %.0f°C",
		s.Temperature, m.gauge.ViewAs(heatFraction(s.Temperature, m.ambient, m.limit)), m.limit)

	lastFrame := "never"
	if !m.spinner.LastEvent().IsZero() {
		lastFrame = formatDuration(now.Sub(m.spinner.LastEvent())) + " ago"
	}
	activityLine := fmt.Sprintf(" last frame %s %s  heartbeat seen %s ago",
		lastFrame, m.spinner.Render(theme), formatDuration(m.ticker.Since(now)))

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleLine,
		statsLine,
		tempLine,
		activityLine,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

// heatFraction maps ambient..limit onto 0..1 for the gauge.
func heatFraction(t, ambient, limit float32) float64 {
	if limit <= ambient {
		return 0
	}
	f := float64((t - ambient) / (limit - ambient))
	return min(max(f, 0), 1)
}

func newGauge() progress.Model {
	return progress.New(
		progress.WithGradient("#61AFEF", "#FF0000"),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
