package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "minimal config gets defaults",
			yaml: `
kernel:
  arenas: 2
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Kernel.Arenas != 2 {
					t.Errorf("kernel.arenas = %d", cfg.Kernel.Arenas)
				}
				if cfg.Kernel.PollInterval != time.Second {
					t.Errorf("poll_interval default not applied: %s", cfg.Kernel.PollInterval)
				}
				if cfg.State.Location != "./data/state.json" {
					t.Errorf("state.location = %q", cfg.State.Location)
				}
				if !cfg.Journal.Enabled || cfg.Journal.Path == "" {
					t.Error("journal defaults not applied")
				}
				if cfg.Service.LogFormat != "json" {
					t.Errorf("log_format = %q", cfg.Service.LogFormat)
				}
			},
		},
		{
			name: "empty file is all defaults",
			yaml: "",
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Kernel.Arenas != 4 {
					t.Errorf("kernel.arenas = %d, want 4", cfg.Kernel.Arenas)
				}
			},
		},
		{
			name: "env var interpolation",
			yaml: `
kernel:
  arenas: 3
  poll_interval: 250ms
state:
  location: ${SNAP_LOCATION}
api:
  enabled: true
  auth:
    api_key: ${API_KEY}
`,
			env: map[string]string{
				"SNAP_LOCATION": "redis://localhost:6379/0?namespace=x",
				"API_KEY":       "secret123",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.State.Location != "redis://localhost:6379/0?namespace=x" {
					t.Errorf("state.location = %q", cfg.State.Location)
				}
				if cfg.API.Auth.APIKey != "secret123" {
					t.Errorf("api_key = %q", cfg.API.Auth.APIKey)
				}
				if cfg.Kernel.PollInterval != 250*time.Millisecond {
					t.Errorf("poll_interval = %s", cfg.Kernel.PollInterval)
				}
			},
		},
		{
			name: "log level is case-insensitive",
			yaml: `
service:
  log_level: DEBUG
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.LogLevel != "debug" {
					t.Errorf("log_level = %q", cfg.Service.LogLevel)
				}
			},
		},
		{
			name:    "zero arenas",
			yaml:    "kernel:\n  arenas: 0\n",
			wantErr: "kernel.arenas must be positive",
		},
		{
			name:    "bad log level",
			yaml:    "service:\n  log_level: loud\n",
			wantErr: "service.log_level",
		},
		{
			name:    "unknown key",
			yaml:    "kernel:\n  arenaz: 2\n",
			wantErr: "failed to parse YAML",
		},
		{
			name: "api enabled without key",
			yaml: `
api:
  enabled: true
`,
			wantErr: "api.auth.api_key is required",
		},
		{
			name: "unresolved api key",
			yaml: `
api:
  enabled: true
  auth:
    api_key: ${ARENAKERNEL_TEST_UNSET_KEY}
`,
			wantErr: "${ARENAKERNEL_TEST_UNSET_KEY} is not set",
		},
		{
			name: "notify without url",
			yaml: `
notify:
  enabled: true
  redis_url: ""
`,
			wantErr: "notify.redis_url is required",
		},
		{
			name: "save on stop without location",
			yaml: `
state:
  location: ""
  restore_on_start: false
  save_on_stop: true
`,
			wantErr: "state.location is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeTestFile(t, path, tt.yaml)

			cfg, err := Load(path)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Load() succeeded, want error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "config.yaml"), "kernel:\n  arenas: 5\n")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(dir) failed: %v", err)
	}
	if cfg.Kernel.Arenas != 5 {
		t.Fatalf("kernel.arenas = %d, want 5", cfg.Kernel.Arenas)
	}

	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("Load() of a directory without config.yaml should fail")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestDiscoverConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	writeTestFile(t, path, "kernel:\n  arenas: 1\n")

	t.Setenv(EnvConfigPath, path)
	got, err := DiscoverConfigPath()
	if err != nil {
		t.Fatalf("DiscoverConfigPath() failed: %v", err)
	}
	if got != path {
		t.Fatalf("DiscoverConfigPath() = %q, want %q", got, path)
	}

	t.Setenv(EnvConfigPath, filepath.Join(dir, "missing.yaml"))
	if _, err := DiscoverConfigPath(); err == nil {
		t.Fatal("expected error when $ARENAKERNEL_CONFIG points nowhere")
	}
}
