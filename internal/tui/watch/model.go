package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/arenakernel/internal/events"
	"github.com/mattjoyce/arenakernel/internal/kernel"
)

const (
	maxEventLog  = 50
	pollInterval = 2 * time.Second
	retryDelay   = 5 * time.Second
)

// Model is the BubbleTea model for the watch TUI.
type Model struct {
	client Client

	width  int
	height int

	health   HealthState
	arenas   []kernel.ArenaView
	tasks    *taskTracker
	eventLog []events.Record
	activity Activity

	taskTable table.Model
	spin      spinner.Model
	theme     Theme

	records chan events.Record

	lastError string
	now       func() time.Time
}

// New creates a watch model for the API at apiURL.
func New(apiURL, apiKey string) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	return Model{
		client:    Client{BaseURL: apiURL, APIKey: apiKey},
		tasks:     newTaskTracker(),
		taskTable: newTaskTable(),
		spin:      sp,
		theme:     NewDefaultTheme(),
		records:   make(chan events.Record, 100),
		now:       time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.client.subscribe(m.records),
		receiveNextEvent(m.records),
		m.client.fetchHealth,
		m.client.fetchArenas,
		m.spin.Tick,
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, tea.Batch(m.client.fetchHealth, m.client.fetchArenas)
		}
		var cmd tea.Cmd
		m.taskTable, cmd = m.taskTable.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.taskTable.SetWidth(max(msg.Width-6, 20))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		rec := events.Record(msg)
		m.eventLog = append([]events.Record{rec}, m.eventLog...)
		if len(m.eventLog) > maxEventLog {
			m.eventLog = m.eventLog[:maxEventLog]
		}
		m.activity.OnEvent(m.now())
		if m.tasks.apply(rec) {
			m.taskTable.SetRows(m.tasks.rows())
		}
		m.health.Connected = true
		m.lastError = ""

		next := receiveNextEvent(m.records)
		if rec.Type == events.ArenaReset {
			return m, tea.Batch(next, m.client.fetchArenas)
		}
		return m, next

	case healthMsg:
		m.health = HealthState(msg)
		m.health.Connected = true
		m.health.LastCheck = m.now()
		m.lastError = ""
		return m, tea.Tick(pollInterval, func(time.Time) tea.Msg { return m.client.fetchHealth() })

	case arenasMsg:
		m.arenas = []kernel.ArenaView(msg)
		return m, tea.Tick(pollInterval, func(time.Time) tea.Msg { return m.client.fetchArenas() })

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, m.client.subscribe(m.records)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(retryDelay, func(time.Time) tea.Msg { return m.client.fetchHealth() })
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing watch..."
	}
	now := m.now()

	header := renderHeader(m.health, m.spin.View(), m.activity, m.theme, m.width, now)
	arenas := renderArenas(m.arenas, m.theme, m.width)
	tasks := m.theme.Border.Width(max(m.width-4, 20)).Render(
		lipgloss.JoinVertical(lipgloss.Left, m.theme.Title.Render("TASKS"), m.taskTable.View()),
	)
	stream := renderEventStream(m.eventLog, m.theme, m.width)

	parts := []string{header, arenas, tasks, stream}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	parts = append(parts, m.theme.Dim.Render(" [q] Quit • [r] Refresh • [↑/↓] Tasks"))

	return lipgloss.NewStyle().Margin(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
