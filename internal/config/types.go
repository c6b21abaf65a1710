package config

import "time"

// Config represents the complete arenakernel configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Kernel  KernelConfig  `yaml:"kernel"`
	State   StateConfig   `yaml:"state"`
	Journal JournalConfig `yaml:"journal"`
	API     APIConfig     `yaml:"api,omitempty"`
	Notify  NotifyConfig  `yaml:"notify,omitempty"`
}

// ServiceConfig defines process-wide settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// PIDFile guards against two processes sharing one state location.
	PIDFile string `yaml:"pid_file"`
}

// KernelConfig sizes the worker pool.
type KernelConfig struct {
	Arenas          int           `yaml:"arenas"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	Retain          int           `yaml:"retain"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	EventBuffer     int           `yaml:"event_buffer"`
}

// StateConfig defines where arena snapshots live.
type StateConfig struct {
	// Location is a JSON file path, a .db/.sqlite path, or a redis:// URL.
	Location       string `yaml:"location"`
	RestoreOnStart bool   `yaml:"restore_on_start"`
	SaveOnStop     bool   `yaml:"save_on_stop"`
}

// JournalConfig defines the task_log database.
type JournalConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Path      string        `yaml:"path"`
	Retention time.Duration `yaml:"retention"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// NotifyConfig defines the Redis event forwarder.
type NotifyConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RedisURL  string `yaml:"redis_url"`
	Namespace string `yaml:"namespace"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "arenakernel",
			LogLevel:  "info",
			LogFormat: "json",
			PIDFile:   "./data/arenakernel.pid",
		},
		Kernel: KernelConfig{
			Arenas:          4,
			PollInterval:    time.Second,
			Retain:          10000,
			ShutdownTimeout: 30 * time.Second,
			EventBuffer:     256,
		},
		State: StateConfig{
			Location:       "./data/state.json",
			RestoreOnStart: true,
			SaveOnStop:     true,
		},
		Journal: JournalConfig{
			Enabled:   true,
			Path:      "./data/journal.db",
			Retention: 30 * 24 * time.Hour,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		Notify: NotifyConfig{
			Enabled:   false,
			RedisURL:  "redis://127.0.0.1:6379/0",
			Namespace: "default",
		},
	}
}
