package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/arenakernel/internal/events"
	"github.com/mattjoyce/arenakernel/internal/kernel"
	"github.com/mattjoyce/arenakernel/internal/log"
	"github.com/mattjoyce/arenakernel/internal/task"
	"github.com/mattjoyce/arenakernel/internal/work"
)

const testKey = "test-key"

type fixture struct {
	kernel *kernel.Kernel
	srv    *httptest.Server
	state  string
}

func newFixture(t *testing.T, run bool) *fixture {
	t.Helper()
	logger := log.Discard()
	bus := events.NewBus(logger, 64)
	k, err := kernel.New(kernel.Options{Arenas: 2, PollInterval: 10 * time.Millisecond, Logger: logger, Bus: bus})
	require.NoError(t, err)
	if run {
		require.NoError(t, k.Run())
	}
	t.Cleanup(func() { _ = k.Stop(context.Background()) })

	state := filepath.Join(t.TempDir(), "state.json")
	s := New(Config{APIKey: testKey, StateLocation: state}, k, work.Builtins(), bus, logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &fixture{kernel: k, srv: srv, state: state}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestHealthzNeedsNoAuth(t *testing.T) {
	f := newFixture(t, true)
	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body HealthzResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Running)
	assert.Equal(t, 2, body.Arenas)
	assert.Equal(t, f.kernel.InstanceID(), body.InstanceID)
}

func TestProtectedRoutesRequireKey(t *testing.T) {
	f := newFixture(t, false)
	for _, path := range []string{"/arenas", "/tasks/0", "/events"} {
		resp, err := http.Get(f.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/arenas", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSubmitAndFetchTask(t *testing.T) {
	f := newFixture(t, true)

	resp, body := f.do(t, http.MethodPost, "/tasks", work.Command{Name: "square", Args: []any{3}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	var sub SubmitResponse
	require.NoError(t, json.Unmarshal(body, &sub))
	assert.Equal(t, "square", sub.Command)

	var view task.View
	require.Eventually(t, func() bool {
		resp, body := f.do(t, http.MethodGet, "/tasks/0", nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		view = task.View{}
		_ = json.Unmarshal(body, &view)
		return view.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, task.StatusCompleted, view.Status)
	assert.EqualValues(t, 9, view.Result)
	assert.NotEmpty(t, view.Arena)
}

func TestSubmitErrors(t *testing.T) {
	f := newFixture(t, false)

	resp, body := f.do(t, http.MethodPost, "/tasks", work.Command{Name: "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "unknown command")

	resp, _ = f.do(t, http.MethodPost, "/tasks", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/tasks/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/tasks/42", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestArenasAndReset(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.kernel.AllocateInArena(1, "k", "v"))

	resp, body := f.do(t, http.MethodGet, "/arenas", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list ArenasResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Arenas, 2)
	assert.Equal(t, []string{"k"}, list.Arenas[1].Keys)

	resp, _ = f.do(t, http.MethodPost, "/arenas/1/reset", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, ok, _ := f.kernel.GetFromArena(1, "k")
	assert.False(t, ok)

	resp, _ = f.do(t, http.MethodPost, "/arenas/7/reset", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/arenas/x/reset", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStateSaveAndLoad(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.kernel.AllocateInArena(0, "a", 1))

	resp, body := f.do(t, http.MethodPost, "/state/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.FileExists(t, f.state)

	require.NoError(t, f.kernel.HandleFailState(0))
	resp, body = f.do(t, http.MethodPost, "/state/load", StateRequest{Location: f.state})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	v, ok, _ := f.kernel.GetFromArena(0, "a")
	assert.True(t, ok)
	assert.EqualValues(t, 1, v)

	require.NoError(t, f.kernel.Run())
	resp, _ = f.do(t, http.MethodPost, "/state/load", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestStopLoadRunOnLiveKernel(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.kernel.AllocateInArena(1, "k", "v"))
	resp, body := f.do(t, http.MethodPost, "/state/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, f.kernel.HandleFailState(1))

	resp, _ = f.do(t, http.MethodPost, "/state/load", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/kernel/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var kr KernelResponse
	require.NoError(t, json.Unmarshal(body, &kr))
	assert.False(t, kr.Running)
	assert.False(t, f.kernel.Running())

	resp, body = f.do(t, http.MethodPost, "/state/load", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	v, ok, _ := f.kernel.GetFromArena(1, "k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	resp, body = f.do(t, http.MethodPost, "/kernel/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.True(t, f.kernel.Running())

	resp, _ = f.do(t, http.MethodPost, "/kernel/run", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestEventsStream(t *testing.T) {
	f := newFixture(t, true)
	f.kernel.Submit(func(context.Context, []any, map[string]any) (any, error) { return "x", nil }, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	seen := map[string]bool{}
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if typ, ok := strings.CutPrefix(line, "event: "); ok {
			seen[typ] = true
		}
		if seen[events.TaskSubmitted] && seen[events.TaskComplete] {
			break
		}
	}
	assert.True(t, seen[events.TaskSubmitted])
	assert.True(t, seen[events.TaskComplete])
}

func TestOpenAPIListsCommands(t *testing.T) {
	f := newFixture(t, false)
	resp, err := http.Get(f.srv.URL + "/openapi.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "3.1.0", doc["openapi"])
	paths := doc["paths"].(map[string]any)
	post := paths["/tasks"].(map[string]any)["post"].(map[string]any)
	schema := post["requestBody"].(map[string]any)["content"].(map[string]any)["application/json"].(map[string]any)["schema"].(map[string]any)
	enum := schema["properties"].(map[string]any)["command"].(map[string]any)["enum"].([]any)
	assert.Contains(t, enum, "square")
}
