package watch

import (
	"bufio"
	"strconv"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/arenakernel/internal/events"
	"github.com/mattjoyce/arenakernel/internal/task"
)

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		"",
		"id: 3",
		"event: task_complete",
		`data: {"id":1,"status":"completed","arena":"Arena_0","result":4}`,
		"",
		"id: 4",
		"event: arena_reset",
		`data: {"index":0,"arena":"Arena_0","cleared":2}`,
		"",
		"id: 5",
		"event: task_failed",
		`data: {"id":2,"status":"failed"}`,
	}, "\n") + "\n\n"

	ch := make(chan events.Record, 4)
	readSSE(bufio.NewScanner(strings.NewReader(stream)), ch)
	close(ch)

	var got []events.Record
	for rec := range ch {
		got = append(got, rec)
	}
	require.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, int64(5), got[2].ID)
	assert.Equal(t, events.TaskComplete, got[0].Type)
	assert.Equal(t, events.ArenaReset, got[1].Type)
	assert.Equal(t, "Arena_0 cleared 2", describeEvent(got[1]))
}

func TestReadSSEDropsUnterminatedFrame(t *testing.T) {
	stream := "id: 9\nevent: task_complete\ndata: {\"id\":9}\n"
	ch := make(chan events.Record, 1)
	readSSE(bufio.NewScanner(strings.NewReader(stream)), ch)
	assert.Empty(t, ch)
}

func TestTaskTrackerKeepsTerminalState(t *testing.T) {
	tt := newTaskTracker()
	assert.True(t, tt.apply(events.Record{Type: events.TaskComplete, Data: []byte(`{"id":2,"status":"completed","result":9}`)}))
	assert.False(t, tt.apply(events.Record{Type: events.TaskSubmitted, Data: []byte(`{"id":2,"status":"pending"}`)}))
	assert.True(t, tt.apply(events.Record{Type: events.TaskFailed, Data: []byte(`{"id":1,"status":"failed","error":"boom"}`)}))
	assert.False(t, tt.apply(events.Record{Type: events.ArenaReset, Data: []byte(`{}`)}))

	assert.Equal(t, task.StatusCompleted, tt.views[2].Status)
	rows := tt.rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "2", rows[0][0])
	assert.Equal(t, "9", rows[0][3])
	assert.Equal(t, "boom", rows[1][3])
}

func TestTaskTrackerEvictsOldest(t *testing.T) {
	tt := newTaskTracker()
	for i := range maxTrackedTasks + 5 {
		tt.apply(events.Record{Type: events.TaskSubmitted, Data: []byte(`{"id":` + strconv.Itoa(i) + `,"status":"pending"}`)})
	}
	assert.Len(t, tt.order, maxTrackedTasks)
	_, ok := tt.views[0]
	assert.False(t, ok)
}

func TestActivityFades(t *testing.T) {
	var a Activity
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, a.Lit(now))

	a.OnEvent(now)
	assert.Equal(t, activityDots, a.Lit(now))
	assert.Equal(t, activityDots-2, a.Lit(now.Add(4*time.Second)))
	assert.Equal(t, 0, a.Lit(now.Add(time.Minute)))
}

func TestUpdateTracksEvents(t *testing.T) {
	m := New("http://127.0.0.1:1", "")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	updated, cmd := updated.Update(eventMsg(events.Record{
		ID:   1,
		Type: events.TaskSubmitted,
		At:   time.Now(),
		Data: []byte(`{"id":0,"status":"pending"}`),
	}))
	require.NotNil(t, cmd)

	model := updated.(Model)
	require.Len(t, model.eventLog, 1)
	assert.True(t, model.health.Connected)
	assert.Len(t, model.taskTable.Rows(), 1)
	assert.Contains(t, model.View(), "ARENAKERNEL WATCH")
}

func TestQuitKey(t *testing.T) {
	m := New("http://127.0.0.1:1", "")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}
