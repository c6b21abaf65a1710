package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/arenakernel/internal/kernel"
)

func renderArenas(arenas []kernel.ArenaView, theme Theme, width int) string {
	innerWidth := max(width-4, 20)
	lines := []string{theme.Title.Render("ARENAS")}
	if len(arenas) == 0 {
		lines = append(lines, theme.Dim.Render("  No arena data yet"))
	}
	for _, a := range arenas {
		state := theme.StatusPending.Render("idle")
		if a.Busy {
			state = theme.StatusRunning.Render("busy")
			if a.CurrentTask != nil {
				state += theme.Dim.Render(fmt.Sprintf(" #%d", *a.CurrentTask))
			}
		}
		keys := theme.Dim.Render("-")
		if len(a.Keys) > 0 {
			keys = truncate(strings.Join(a.Keys, ", "), max(innerWidth-34, 10))
		}
		lines = append(lines, fmt.Sprintf("  %-10s %-16s %3d keys  %s", a.Name, state, len(a.Keys), keys))
	}
	return theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
