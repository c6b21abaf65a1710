package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState mirrors GET /healthz.
type HealthState struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	InstanceID    string `json:"instance_id"`
	Running       bool   `json:"running"`
	Arenas        int    `json:"arenas"`
	Submitted     int64  `json:"submitted"`
	Queued        int    `json:"queued"`
	Pending       int64  `json:"pending"`
	Completed     int64  `json:"completed"`
	Failed        int64  `json:"failed"`

	Connected bool      `json:"-"`
	LastCheck time.Time `json:"-"`
}

func renderHeader(h HealthState, spin string, activity Activity, theme Theme, width int, now time.Time) string {
	innerWidth := max(width-4, 20)

	var state string
	switch {
	case !h.Connected:
		state = theme.StatusFailed.Render("CONNECTING")
	case h.Status != "ok":
		state = theme.StatusFailed.Render("DEGRADED")
	case h.Running:
		state = theme.StatusOK.Render("RUNNING")
	default:
		state = theme.StatusPending.Render("STOPPED")
	}

	clock := theme.Dim.Render(now.Format("15:04:05"))
	title := fmt.Sprintf(" ARENAKERNEL WATCH %s", spin)
	pad := max(innerWidth-lipgloss.Width(title)-lipgloss.Width(clock)-4, 1)
	titleLine := title + strings.Repeat(" ", pad) + clock + " "

	instance := h.InstanceID
	if len(instance) > 8 {
		instance = instance[:8]
	}
	statsLine := fmt.Sprintf(" %s  %s  up %s  arenas %d  queued %d  pending %d  done %s  failed %s",
		state,
		theme.Dim.Render(instance),
		formatDuration(time.Duration(h.UptimeSeconds)*time.Second),
		h.Arenas, h.Queued, h.Pending,
		theme.StatusOK.Render(fmt.Sprint(h.Completed)),
		theme.StatusFailed.Render(fmt.Sprint(h.Failed)),
	)

	last := "never"
	if t := activity.LastEvent(); !t.IsZero() {
		last = fmt.Sprintf("%s ago", now.Sub(t).Round(time.Second))
	}
	activityLine := fmt.Sprintf(" Last event: %s %s", last, activity.Render(theme, now))

	return theme.Border.Width(innerWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, titleLine, statsLine, activityLine),
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
