package watch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/arenakernel/internal/events"
	"github.com/mattjoyce/arenakernel/internal/kernel"
)

type eventMsg events.Record

type healthMsg HealthState

type arenasMsg []kernel.ArenaView

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// Client talks to the arenakernel HTTP API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func (c Client) get(path string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(c.BaseURL, "/")+path, nil)
	if err != nil {
		return nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	return resp, nil
}

func (c Client) fetchHealth() tea.Msg {
	resp, err := c.get("/healthz")
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var h HealthState
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return healthMsg(h)
}

func (c Client) fetchArenas() tea.Msg {
	resp, err := c.get("/arenas")
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var body struct {
		Arenas []kernel.ArenaView `json:"arenas"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return errMsg(err)
	}
	return arenasMsg(body.Arenas)
}

// subscribe streams /events into ch until the connection drops.
func (c Client) subscribe(ch chan<- events.Record) tea.Cmd {
	return func() tea.Msg {
		stream := Client{BaseURL: c.BaseURL, APIKey: c.APIKey, HTTP: &http.Client{}}
		resp, err := stream.get("/events")
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()

		readSSE(bufio.NewScanner(resp.Body), ch)
		return sseDisconnectedMsg{}
	}
}

// readSSE parses id/event/data frames until the scanner ends.
func readSSE(scanner *bufio.Scanner, ch chan<- events.Record) {
	var cur events.Record
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(cur.Data) > 0 {
				cur.At = time.Now()
				ch <- cur
			}
			cur = events.Record{}
		case strings.HasPrefix(line, "id: "):
			if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				cur.ID = id
			}
		case strings.HasPrefix(line, "event: "):
			cur.Type = line[7:]
		case strings.HasPrefix(line, "data: "):
			cur.Data = []byte(line[6:])
		}
	}
}

func receiveNextEvent(ch <-chan events.Record) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}
