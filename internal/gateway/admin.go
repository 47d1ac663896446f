// Package gateway provides the HTTP surface of the daemon: liveness,
// Prometheus metrics, webhook intake, and an authenticated admin API
// over tasks, approvals, and configuration. It binds to loopback by
// default.
package gateway

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Everest18/claude-code-telegram-control/internal/security"
	"github.com/Everest18/claude-code-telegram-control/internal/task"
	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

// maxTaskListLimit bounds GET /api/tasks responses.
const maxTaskListLimit = 200

// handleListTasks returns tasks, newest first, filtered by the state,
// chat_id, and limit query parameters.
func (g *Gateway) handleListTasks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.tasks == nil {
			http.Error(w, "task store not available", http.StatusServiceUnavailable)
			return
		}

		filter := task.ListFilter{
			ChatID: r.URL.Query().Get("chat_id"),
			Limit:  maxTaskListLimit,
		}

		if state := r.URL.Query().Get("state"); state != "" {
			s := task.State(state)
			if !s.Valid() {
				http.Error(w, "unknown state "+strconv.Quote(state), http.StatusBadRequest)
				return
			}
			filter.State = s
		}

		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			if limit < maxTaskListLimit {
				filter.Limit = limit
			}
		}

		tasks, err := g.tasks.List(r.Context(), filter)
		if err != nil {
			g.logger.Error("task list failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if tasks == nil {
			tasks = []*task.Task{}
		}

		writeJSON(w, http.StatusOK, tasks)
	}
}

// handleGetTask returns a single task by ID.
func (g *Gateway) handleGetTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.tasks == nil {
			http.Error(w, "task store not available", http.StatusServiceUnavailable)
			return
		}

		id := chi.URLParam(r, "id")
		t, err := g.tasks.Get(r.Context(), id)
		if err != nil {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, t)
	}
}

// approvalJSON is a serializable snapshot of the pending request.
type approvalJSON struct {
	ID         string `json:"id"`
	TaskID     string `json:"task_id,omitempty"`
	Content    string `json:"content"`
	ChatID     string `json:"chat_id,omitempty"`
	CreatedAt  string `json:"created_at"`
	AgeSeconds int64  `json:"age_seconds"`
}

// handleApprovals reports the approval slot. There is at most one
// pending request at a time, mirroring the single-file handshake.
func (g *Gateway) handleApprovals() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.approvals == nil {
			http.Error(w, "approval manager not available", http.StatusServiceUnavailable)
			return
		}

		resp := struct {
			State   string        `json:"state"`
			Pending *approvalJSON `json:"pending,omitempty"`
		}{
			State: g.approvals.State().String(),
		}

		if req, ok := g.approvals.Pending(); ok {
			resp.Pending = &approvalJSON{
				ID:         req.ID,
				TaskID:     req.TaskID,
				Content:    req.Content,
				ChatID:     req.ChatID,
				CreatedAt:  req.CreatedAt.UTC().Format(time.RFC3339),
				AgeSeconds: int64(time.Since(req.CreatedAt) / time.Second),
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// handleGetConfig returns the configuration file with secret-looking
// values redacted. The raw file is parsed without environment
// expansion so values sourced from the environment never appear.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.configPath == "" {
			http.Error(w, "config path not set", http.StatusServiceUnavailable)
			return
		}

		raw, err := os.ReadFile(g.configPath)
		if err != nil {
			g.logger.Error("config read failed", "error", err)
			http.Error(w, "failed to load config", http.StatusInternalServerError)
			return
		}

		var generic map[string]any
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			http.Error(w, "failed to parse config", http.StatusInternalServerError)
			return
		}

		security.NewRedactor().RedactMap(generic)

		writeJSON(w, http.StatusOK, generic)
	}
}

// handleReload triggers a configuration reload through the reload
// manager.
func (g *Gateway) handleReload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.reload == nil {
			http.Error(w, "reload not available", http.StatusServiceUnavailable)
			return
		}

		if err := g.reload(r.Context()); err != nil {
			g.logger.Error("config reload failed", "error", err)
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		g.logger.Info("configuration reloaded")
		writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
