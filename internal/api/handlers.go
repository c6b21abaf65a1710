package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/arenakernel/internal/kernel"
	"github.com/mattjoyce/arenakernel/internal/work"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// stopTimeout bounds how long POST /kernel/stop waits for running tasks.
const stopTimeout = 30 * time.Second

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Stats:         s.kernel.Stats(),
	})
}

// handleSubmit handles POST /tasks with a work.Command body.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var cmd work.Command
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&cmd); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if cmd.Name == "" {
		s.writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	fn, err := s.registry.Resolve(cmd.Name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := s.kernel.Submit(fn, cmd.Args, cmd.Kwargs)
	s.logger.Info("task submitted via API", "task_id", id, "command", cmd.Name)
	respondJSON(w, http.StatusAccepted, SubmitResponse{TaskID: id, Status: "pending", Command: cmd.Name})
}

// handleGetTask handles GET /tasks/{taskID}
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "taskID"), 10, 64)
	if err != nil || id < 0 {
		s.writeError(w, http.StatusBadRequest, "task id must be a non-negative integer")
		return
	}
	t, err := s.kernel.Task(id)
	if errors.Is(err, kernel.ErrNoSuchTask) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, t.View())
}

// handleArenas handles GET /arenas
func (s *Server) handleArenas(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ArenasResponse{Arenas: s.kernel.Arenas()})
}

// handleResetArena handles POST /arenas/{index}/reset
func (s *Server) handleResetArena(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "arena index must be an integer")
		return
	}
	if err := s.kernel.HandleFailState(index); err != nil {
		if errors.Is(err, kernel.ErrNoSuchArena) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ResetResponse{Index: index, Status: "reset"})
}

// handleSaveState handles POST /state/save
func (s *Server) handleSaveState(w http.ResponseWriter, r *http.Request) {
	location, ok := s.stateLocation(w, r)
	if !ok {
		return
	}
	if err := s.kernel.SaveState(r.Context(), location); err != nil {
		s.logger.Error("state save failed", "location", location, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, StateResponse{Location: location, Status: "saved"})
}

// handleLoadState handles POST /state/load. The kernel must be stopped.
func (s *Server) handleLoadState(w http.ResponseWriter, r *http.Request) {
	location, ok := s.stateLocation(w, r)
	if !ok {
		return
	}
	if err := s.kernel.LoadState(r.Context(), location); err != nil {
		if errors.Is(err, kernel.ErrRunning) {
			s.writeError(w, http.StatusConflict, "kernel is running; POST /kernel/stop before loading state")
			return
		}
		if errors.Is(err, kernel.ErrUnknownArena) {
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("state load failed", "location", location, "error", err)
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, StateResponse{Location: location, Status: "loaded"})
}

// handleKernelRun handles POST /kernel/run
func (s *Server) handleKernelRun(w http.ResponseWriter, r *http.Request) {
	if err := s.kernel.Run(); err != nil {
		if errors.Is(err, kernel.ErrAlreadyRunning) || errors.Is(err, kernel.ErrStopping) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("kernel started via API")
	respondJSON(w, http.StatusOK, KernelResponse{Status: "running", Running: true})
}

// handleKernelStop handles POST /kernel/stop. Workers finish their current
// task first; queued tasks stay queued for the next run.
func (s *Server) handleKernelStop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), stopTimeout)
	defer cancel()
	if err := s.kernel.Stop(ctx); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.Info("kernel stopped via API")
	respondJSON(w, http.StatusOK, KernelResponse{Status: "stopped", Running: false})
}

func (s *Server) stateLocation(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req StateRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return "", false
	}
	location := req.Location
	if location == "" {
		location = s.config.StateLocation
	}
	if location == "" {
		s.writeError(w, http.StatusBadRequest, "no state location configured")
		return "", false
	}
	return location, true
}

func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
