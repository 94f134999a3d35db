package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/vgpusim/internal/arena"
	"github.com/mattjoyce/vgpusim/internal/config"
	"github.com/mattjoyce/vgpusim/internal/events"
)

// RefreshInterval is how often the monitor re-reads the arena.
const RefreshInterval = 100 * time.Millisecond

// Source is the read side of an attached arena.
type Source interface {
	Snapshot() arena.Status
	Framebuffer() []uint32
	FramebufferDigest() string
}

type refreshMsg time.Time

// Model is the BubbleTea model for the monitor.
type Model struct {
	src Source

	width  int
	height int

	status arena.Status
	digest string
	primed bool

	limit      float32
	ambient    float32
	stallAfter time.Duration

	gauge   progress.Model
	tenants table.Model
	ticker  Ticker
	spinner Spinner
	theme   Theme
	log     *events.Hub
}

// New creates a monitor over src using the thermal and watchdog settings of
// cfg for display thresholds.
func New(src Source, cfg *config.Config) *Model {
	stall := cfg.Watchdog.Interval * time.Duration(max(cfg.Watchdog.Threshold, 1))
	return &Model{
		src:        src,
		limit:      cfg.Thermal.Limit,
		ambient:    cfg.Thermal.Ambient,
		stallAfter: stall,
		gauge:      newGauge(),
		tenants:    newTenantTable(),
		ticker:     NewTicker(),
		spinner:    NewSpinner(),
		theme:      NewDefaultTheme(),
		log:        events.NewHub(64),
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return refreshMsg(time.Now()) },
		tea.EnterAltScreen,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case refreshMsg:
		m.refresh(time.Time(msg))
		return m, tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
	}

	return m, nil
}

// refresh reads a new snapshot and advances the indicators.
func (m *Model) refresh(now time.Time) {
	next := m.src.Snapshot()
	if m.primed {
		if next.Heartbeat != m.status.Heartbeat {
			m.ticker.Tick(now)
		}
		if next.FrameCounter != m.status.FrameCounter {
			m.spinner.OnEvent(now)
		}
		observe(m.log, m.status, next, m.limit)
	} else {
		m.ticker.Tick(now)
		m.primed = true
	}
	m.spinner.Decay(now)

	m.status = next
	m.digest = m.src.FramebufferDigest()
	m.tenants.SetRows(tenantRows(next.Tenants))
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Attaching to device..."
	}
	now := time.Now()

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit")

	parts := []string{
		renderHeader(m, now, m.width),
		renderTenants(m.tenants, m.theme, m.width),
		renderPreview(m.src.Framebuffer(), m.digest, m.theme, m.width),
		renderEventStream(m.log.SnapshotSince(0), m.theme, m.width),
		help,
	}

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

// Run blocks until the user quits.
func Run(src Source, cfg *config.Config) error {
	_, err := tea.NewProgram(New(src, cfg), tea.WithAltScreen()).Run()
	return err
}
