package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/arenakernel/internal/events"
)

func renderEventStream(log []events.Record, theme Theme, width int) string {
	innerWidth := max(width-4, 20)

	if len(log) == 0 {
		return theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Dim.Render("  Waiting for events..."),
		))
	}

	var lines []string
	for i, rec := range log {
		if i >= 10 {
			break
		}
		lines = append(lines, formatEvent(rec, theme))
	}
	return theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n")),
	))
}

func formatEvent(rec events.Record, theme Theme) string {
	ts := theme.Dim.Render(rec.At.Format("15:04:05"))
	typeName := theme.statusStyle(rec.Type).Render(fmt.Sprintf("%-15s", rec.Type))
	return fmt.Sprintf("%s %s %s", ts, typeName, describeEvent(rec))
}

func describeEvent(rec events.Record) string {
	data := make(map[string]any)
	_ = json.Unmarshal(rec.Data, &data)

	var parts []string
	if rec.Type == events.ArenaReset {
		if name, ok := data["arena"].(string); ok {
			parts = append(parts, name)
		}
		if n, ok := data["cleared"].(float64); ok {
			parts = append(parts, fmt.Sprintf("cleared %d", int(n)))
		}
	} else {
		if id, ok := data["id"].(float64); ok {
			parts = append(parts, fmt.Sprintf("#%d", int64(id)))
		}
		if name, ok := data["arena"].(string); ok && name != "" {
			parts = append(parts, name)
		}
		if msg, ok := data["error"].(string); ok && msg != "" {
			parts = append(parts, truncate(msg, 40))
		}
	}

	if len(parts) == 0 {
		return truncate(string(rec.Data), 60)
	}
	return strings.Join(parts, " ")
}
