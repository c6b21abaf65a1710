package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/arenakernel/internal/config"
	"github.com/mattjoyce/arenakernel/internal/log"
	"github.com/mattjoyce/arenakernel/internal/snapshot"
	"github.com/mattjoyce/arenakernel/internal/work"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	os.Exit(m.Run())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	if args == nil {
		args = []string{} // nil makes cobra fall back to os.Args
	}
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootShowsHelp(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "arenakernel")
}

func TestRootRejectsUnknownFlags(t *testing.T) {
	_, err := execute(t, "--no-such-flag")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestVersionJSON(t *testing.T) {
	SetVersionInfo("1.2.3", "0123456789abcdef", "2026-01-02T03:04:05Z")
	out, err := execute(t, "version", "--json")
	require.NoError(t, err)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "0123456789ab", info.Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", info.BuildTime)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, float64(7), parseValue("7"))
	assert.Equal(t, "hello", parseValue("hello"))
	assert.Equal(t, "quoted", parseValue(`"quoted"`))
	assert.Equal(t, []any{float64(1), true}, parseValue("[1,true]"))
}

func TestSubmitSendsCommand(t *testing.T) {
	var got work.Command
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"task_id":5,"status":"pending","command":"scratch"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "submit", "scratch", "--api-url", srv.URL, "--api-key", "secret",
		"--kw", "key=note", "--kw", `value="hi"`)
	require.NoError(t, err)
	assert.Contains(t, out, "submitted task 5")
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "scratch", got.Name)
	assert.Equal(t, map[string]any{"key": "note", "value": "hi"}, got.Kwargs)
}

func TestTaskGetReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"task not found"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "task", "get", "42", "--api-url", srv.URL)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "task not found", apiErr.Message)

	_, err = execute(t, "task", "get", "-1", "--api-url", srv.URL)
	require.Error(t, err)
}

func TestArenaList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"arenas":[
			{"index":0,"name":"Arena_0","keys":["a","b"],"busy":true,"current_task":3},
			{"index":1,"name":"Arena_1","keys":[],"busy":false}]}`))
	}))
	defer srv.Close()

	out, err := execute(t, "arena", "list", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "INDEX")
	assert.Regexp(t, `0\s+Arena_0\s+busy\s+3\s+2`, out)
	assert.Regexp(t, `1\s+Arena_1\s+idle\s+-\s+0`, out)
}

func TestArenaReset(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"index":1,"status":"reset"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "arena", "reset", "1", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "/arenas/1/reset", path)
	assert.Contains(t, out, "arena 1 reset")
}

func TestStateShowReadsSnapshot(t *testing.T) {
	location := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, snapshot.NewFileStore(location).Save(context.Background(), snapshot.Snapshot{
		"Arena_0": {"x": float64(1)},
	}))

	out, err := execute(t, "state", "show", "--location", location)
	require.NoError(t, err)

	var snap snapshot.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, float64(1), snap["Arena_0"]["x"])
}

func TestKernelStopAndRun(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path)
		status := "stopped"
		if r.URL.Path == "/kernel/run" {
			status = "running"
		}
		_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "kernel", "stop", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "kernel stopped")

	out, err = execute(t, "kernel", "run", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "kernel running")
	assert.Equal(t, []string{"/kernel/stop", "/kernel/run"}, paths)
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := "service:\n  pid_file: " + filepath.Join(dir, "ak.pid") + "\n" +
		"kernel:\n  arenas: 2\n" +
		"state:\n  location: " + filepath.Join(dir, "state.json") + "\n" +
		"journal:\n  path: " + filepath.Join(dir, "journal.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestConfigCheckAndLock(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)

	out, err := execute(t, "config", "check", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "config ok")
	assert.Contains(t, out, "arenas:  2")

	out, err = execute(t, "config", "lock", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "config.yaml")
	assert.FileExists(t, filepath.Join(dir, config.ChecksumFile))

	require.NoError(t, os.WriteFile(path, []byte("kernel:\n  arenas: 3\n"), 0o644))
	_, err = execute(t, "config", "check", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification failed")
}

func TestRunDaemonSavesOnStop(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load(writeConfig(t, dir))
	require.NoError(t, err)

	store := snapshot.NewFileStore(cfg.State.Location)
	require.NoError(t, store.Save(context.Background(), snapshot.Snapshot{"Arena_1": {"kept": "yes"}}))

	// Already cancelled: boot completes, then shutdown runs straight away.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, runDaemon(ctx, cfg))

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap, 2)
	assert.Empty(t, snap["Arena_0"])
	assert.Equal(t, "yes", snap["Arena_1"]["kept"])
	assert.FileExists(t, cfg.Journal.Path)
}
