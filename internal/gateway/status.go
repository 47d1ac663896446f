package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Status        string         `json:"status"`
	Version       string         `json:"version,omitempty"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Mode          string         `json:"mode,omitempty"`
	Routes        []string       `json:"routes,omitempty"`
	Agent         *AgentJSON     `json:"agent,omitempty"`
	Tasks         map[string]int `json:"tasks,omitempty"`
	Approval      *ApprovalState `json:"approval,omitempty"`
	Events        *EventsJSON    `json:"events,omitempty"`
}

// AgentJSON is the agent liveness snapshot.
type AgentJSON struct {
	Online     bool   `json:"online"`
	StatusText string `json:"status_text,omitempty"`
	CheckedAt  string `json:"checked_at"`
}

// ApprovalState is the approval slot snapshot.
type ApprovalState struct {
	State      string `json:"state"`
	PendingID  string `json:"pending_id,omitempty"`
	AgeSeconds int64  `json:"age_seconds,omitempty"`
}

// EventsJSON reports bus health.
type EventsJSON struct {
	Subscribers int   `json:"subscribers"`
	Dropped     int64 `json:"dropped"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Status:        "ok",
			Version:       g.version,
			UptimeSeconds: int64(time.Since(g.startedAt) / time.Second),
		}

		if g.routes != nil {
			resp.Mode = string(g.routes.Resolve(r.Context(), ""))
			resp.Routes = g.routes.Routes()
		}

		if g.agent != nil {
			status := g.agent.Probe(r.Context())
			resp.Agent = &AgentJSON{
				Online:     status.Online,
				StatusText: status.StatusText,
				CheckedAt:  status.CheckedAt.UTC().Format(time.RFC3339),
			}
		}

		if g.tasks != nil {
			counts, err := g.tasks.CountByState(r.Context())
			if err == nil {
				tasks := make(map[string]int, len(counts))
				for state, n := range counts {
					tasks[string(state)] = n
				}
				resp.Tasks = tasks
			}
		}

		if g.approvals != nil {
			state := &ApprovalState{State: g.approvals.State().String()}
			if req, ok := g.approvals.Pending(); ok {
				state.PendingID = req.ID
				state.AgeSeconds = int64(time.Since(req.CreatedAt) / time.Second)
			}
			resp.Approval = state
		}

		if g.bus != nil {
			resp.Events = &EventsJSON{
				Subscribers: g.bus.Subscribers(),
				Dropped:     g.bus.Dropped(),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
