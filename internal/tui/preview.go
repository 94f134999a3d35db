package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/vgpusim/internal/arena"
)

// Preview grid size in terminal cells. Each cell samples the centre pixel of
// a Width/previewCols × Height/previewRows block.
const (
	previewCols = 64
	previewRows = 16
)

// hexColor renders the RGB part of an ARGB pixel.
func hexColor(px uint32) string {
	return fmt.Sprintf("#%06X", px&0x00FFFFFF)
}

func renderPreview(fb []uint32, digest string, theme Theme, width int) string {
	bw := arena.Width / previewCols
	bh := arena.Height / previewRows

	styles := make(map[uint32]lipgloss.Style)
	var b strings.Builder
	for row := range previewRows {
		y := row*bh + bh/2
		for col := range previewCols {
			x := col*bw + bw/2
			px := fb[y*arena.Width+x] & 0x00FFFFFF
			st, ok := styles[px]
			if !ok {
				st = lipgloss.NewStyle().Foreground(lipgloss.Color(hexColor(px)))
				styles[px] = st
			}
			b.WriteString(st.Render("█"))
		}
		if row < previewRows-1 {
			b.WriteByte('\n')
		}
	}

	short := digest
	if len(short) > 16 {
		short = short[:16]
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render(fmt.Sprintf("FRAMEBUFFER %dx%d", arena.Width, arena.Height))+theme.Dim.Render(" blake3 "+short),
		b.String(),
	)
	return theme.Border.Width(width - 4).Render(content)
}
