package watch

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/arenakernel/internal/events"
	"github.com/mattjoyce/arenakernel/internal/task"
)

const maxTrackedTasks = 200

// taskTracker folds task events into the latest view per task.
type taskTracker struct {
	views map[int64]task.View
	order []int64 // ascending ids
}

func newTaskTracker() *taskTracker {
	return &taskTracker{views: make(map[int64]task.View)}
}

func (tt *taskTracker) apply(rec events.Record) bool {
	switch rec.Type {
	case events.TaskSubmitted, events.TaskComplete, events.TaskFailed:
	default:
		return false
	}
	var v task.View
	if err := json.Unmarshal(rec.Data, &v); err != nil {
		return false
	}
	if prev, ok := tt.views[v.ID]; ok && prev.Status.Terminal() && !v.Status.Terminal() {
		return false // late submitted event after completion
	}
	if _, ok := tt.views[v.ID]; !ok {
		i, _ := slices.BinarySearch(tt.order, v.ID)
		tt.order = slices.Insert(tt.order, i, v.ID)
	}
	tt.views[v.ID] = v

	for len(tt.order) > maxTrackedTasks {
		delete(tt.views, tt.order[0])
		tt.order = tt.order[1:]
	}
	return true
}

// rows returns table rows, newest task first.
func (tt *taskTracker) rows() []table.Row {
	rows := make([]table.Row, 0, len(tt.order))
	for i := len(tt.order) - 1; i >= 0; i-- {
		v := tt.views[tt.order[i]]
		rows = append(rows, table.Row{
			strconv.FormatInt(v.ID, 10),
			string(v.Status),
			v.Arena,
			summarize(v),
		})
	}
	return rows
}

func summarize(v task.View) string {
	if v.Error != "" {
		return truncate(v.Error, 40)
	}
	if v.Result == nil {
		return ""
	}
	raw, err := json.Marshal(v.Result)
	if err != nil {
		return fmt.Sprint(v.Result)
	}
	return truncate(string(raw), 40)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func newTaskTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 8},
			{Title: "Status", Width: 10},
			{Title: "Arena", Width: 10},
			{Title: "Result", Width: 40},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}
