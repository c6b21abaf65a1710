package api

import "github.com/mattjoyce/arenakernel/internal/kernel"

// SubmitResponse is returned on successful task submission
type SubmitResponse struct {
	TaskID  int64  `json:"task_id"`
	Status  string `json:"status"`
	Command string `json:"command"`
}

// ResetResponse is returned by POST /arenas/{index}/reset
type ResetResponse struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
}

// KernelResponse is returned by POST /kernel/run and /kernel/stop.
type KernelResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

// StateRequest is the optional body of /state/save and /state/load.
type StateRequest struct {
	Location string `json:"location,omitempty"`
}

// StateResponse reports where state was saved or loaded.
type StateResponse struct {
	Location string `json:"location"`
	Status   string `json:"status"`
}

// ArenasResponse is returned by GET /arenas
type ArenasResponse struct {
	Arenas []kernel.ArenaView `json:"arenas"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	kernel.Stats
}
