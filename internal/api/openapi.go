package api

import "net/http"

// buildOpenAPIDoc describes the API, listing registered commands as the
// enum of the submit body.
func buildOpenAPIDoc(commands []string) map[string]any {
	bearer := []map[string]any{{"BearerAuth": []string{}}}
	jsonBody := func(schema map[string]any) map[string]any {
		return map[string]any{"content": map[string]any{"application/json": map[string]any{"schema": schema}}}
	}
	ok := func(desc string) map[string]any {
		return map[string]any{"description": desc}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "arenakernel",
			"version": "1.0",
		},
		"paths": map[string]any{
			"/healthz": map[string]any{
				"get": map[string]any{"summary": "Kernel health and counters", "responses": map[string]any{"200": ok("ok")}},
			},
			"/tasks": map[string]any{
				"post": map[string]any{
					"summary":  "Submit a registered command as a task",
					"security": bearer,
					"requestBody": jsonBody(map[string]any{
						"type":     "object",
						"required": []string{"command"},
						"properties": map[string]any{
							"command": map[string]any{"type": "string", "enum": commands},
							"args":    map[string]any{"type": "array"},
							"kwargs":  map[string]any{"type": "object"},
						},
					}),
					"responses": map[string]any{"202": ok("accepted"), "400": ok("unknown command or bad body")},
				},
			},
			"/tasks/{taskID}": map[string]any{
				"get": map[string]any{"summary": "Task status and result", "security": bearer,
					"responses": map[string]any{"200": ok("task"), "404": ok("not found")}},
			},
			"/arenas": map[string]any{
				"get": map[string]any{"summary": "List arenas", "security": bearer, "responses": map[string]any{"200": ok("arenas")}},
			},
			"/arenas/{index}/reset": map[string]any{
				"post": map[string]any{"summary": "Clear one arena", "security": bearer,
					"responses": map[string]any{"200": ok("reset"), "404": ok("no such arena")}},
			},
			"/kernel/run": map[string]any{
				"post": map[string]any{"summary": "Start the workers", "security": bearer,
					"responses": map[string]any{"200": ok("running"), "409": ok("already running or still stopping")}},
			},
			"/kernel/stop": map[string]any{
				"post": map[string]any{"summary": "Stop the workers after their current task", "security": bearer,
					"responses": map[string]any{"200": ok("stopped"), "503": ok("workers did not stop in time")}},
			},
			"/state/save": map[string]any{
				"post": map[string]any{"summary": "Save a snapshot", "security": bearer, "responses": map[string]any{"200": ok("saved")}},
			},
			"/state/load": map[string]any{
				"post": map[string]any{"summary": "Load a snapshot into a stopped kernel", "security": bearer,
					"responses": map[string]any{"200": ok("loaded"), "409": ok("kernel running")}},
			},
			"/events": map[string]any{
				"get": map[string]any{"summary": "Server-sent event stream", "security": bearer,
					"responses": map[string]any{"200": ok("text/event-stream")}},
			},
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(s.registry.Names()))
}
