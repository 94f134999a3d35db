package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/vgpusim/internal/arena"
)

func newTenantTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Slot", Width: 4},
			{Title: "State", Width: 8},
			{Title: "PID", Width: 8},
			{Title: "Session", Width: 36},
			{Title: "Queue", Width: 9},
		}),
		// Height includes the header and its border.
		table.WithHeight(arena.MaxTenants+2),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)
	return t
}

func tenantRows(tenants []arena.TenantStatus) []table.Row {
	rows := make([]table.Row, 0, len(tenants))
	for _, ts := range tenants {
		state, pid, owner := "idle", "-", "-"
		if ts.Active {
			state = "active"
			pid = fmt.Sprint(ts.PID)
			if ts.OwnerID != "" {
				owner = ts.OwnerID
			}
		}
		rows = append(rows, table.Row{
			fmt.Sprint(ts.Index),
			state,
			pid,
			owner,
			fmt.Sprintf("%d/%d", ts.Depth, arena.RingSize-1),
		})
	}
	return rows
}

func renderTenants(t table.Model, theme Theme, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("TENANTS"),
		t.View(),
	)
	return theme.Border.Width(width - 4).Render(content)
}
