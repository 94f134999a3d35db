package tui

import (
	"strings"
	"time"
)

// Ticker rotates once per observed heartbeat. It stops rotating when the
// scheduler stops stamping, which is what a hang looks like from outside.
type Ticker struct {
	frames   []string
	index    int
	lastTick time.Time
}

func NewTicker() Ticker {
	return Ticker{
		frames:   []string{"⟲", "⟳"},
		lastTick: time.Now(),
	}
}

func (t *Ticker) Tick(now time.Time) {
	t.index = (t.index + 1) % len(t.frames)
	t.lastTick = now
}

func (t Ticker) Current() string {
	return t.frames[t.index]
}

// Since returns how long ago the last heartbeat was seen.
func (t Ticker) Since(now time.Time) time.Duration {
	return now.Sub(t.lastTick)
}

// Spinner shows command activity with a decaying dot pattern.
// Lights up when frames are executed, fades over time.
type Spinner struct {
	dots      int
	lastEvent time.Time
}

func NewSpinner() Spinner {
	return Spinner{}
}

func (s *Spinner) OnEvent(now time.Time) {
	s.dots = 5
	s.lastEvent = now
}

// Decay fades the spinner dots based on time since the last frame.
func (s *Spinner) Decay(now time.Time) {
	if s.dots == 0 {
		return
	}
	elapsed := now.Sub(s.lastEvent)
	switch {
	case elapsed > 5*time.Second:
		s.dots = 0
	case elapsed > 4*time.Second:
		s.dots = 1
	case elapsed > 3*time.Second:
		s.dots = 2
	case elapsed > 2*time.Second:
		s.dots = 3
	case elapsed > time.Second:
		s.dots = 4
	}
}

func (s Spinner) Render(theme Theme) string {
	var result strings.Builder
	for i := range 5 {
		if i < s.dots {
			result.WriteString(theme.TickerActive.Render("●"))
		} else {
			result.WriteString(theme.TickerInactive.Render("○"))
		}
	}
	return result.String()
}

func (s Spinner) LastEvent() time.Time {
	return s.lastEvent
}
