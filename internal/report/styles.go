package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles bound to one output writer. Colors are
// dropped automatically when the writer is not a terminal.
type Styles struct {
	Running  lipgloss.Style
	Complete lipgloss.Style
	Failed   lipgloss.Style
	Skipped  lipgloss.Style
	Muted    lipgloss.Style
	Title    lipgloss.Style
	Box      lipgloss.Style
}

// NewStyles builds styles for w.
func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Running: r.NewStyle().
			Foreground(lipgloss.Color("3")).
			Bold(true),
		Complete: r.NewStyle().
			Foreground(lipgloss.Color("2")).
			Bold(true),
		Failed: r.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true),
		Skipped: r.NewStyle().
			Foreground(lipgloss.Color("5")),
		Muted: r.NewStyle().
			Foreground(lipgloss.Color("240")),
		Title: r.NewStyle().
			Bold(true).
			Padding(0, 1),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),
	}
}
