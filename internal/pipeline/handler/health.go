package handler

import (
	"context"
	"net/http"
	"time"

	"consentsync/pkg/platform/httputil"
)

const (
	stateUp   = "UP"
	stateDown = "DOWN"
)

// Check is one readiness dependency.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

type checkResult struct {
	Name  string            `json:"name"`
	State string            `json:"state"`
	Data  map[string]string `json:"data,omitempty"`
}

type healthResponse struct {
	Status string        `json:"status"`
	Checks []checkResult `json:"checks"`
}

// Health serves liveness and readiness.
type Health struct {
	checks  []Check
	timeout time.Duration
}

// NewHealth builds the health handler. Each check gets timeout to answer.
func NewHealth(timeout time.Duration, checks ...Check) *Health {
	return &Health{checks: checks, timeout: timeout}
}

// HandleLive reports the process is up without touching dependencies.
func (h *Health) HandleLive(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, healthResponse{Status: stateUp, Checks: []checkResult{}})
}

// HandleReady runs every check and answers 503 when any is down.
func (h *Health) HandleReady(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: stateUp, Checks: make([]checkResult, 0, len(h.checks))}
	for _, c := range h.checks {
		res := checkResult{Name: c.Name, State: stateUp}
		if err := h.run(r.Context(), c); err != nil {
			res.State = stateDown
			res.Data = map[string]string{"reason": err.Error()}
			resp.Status = stateDown
		}
		resp.Checks = append(resp.Checks, res)
	}

	status := http.StatusOK
	if resp.Status == stateDown {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Health) run(ctx context.Context, c Check) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return c.Fn(ctx)
}
