package gateway

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Store  string `json:"store,omitempty"`
}

// handleHealth returns 200 when the store answers, 503 otherwise.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if p, ok := g.deps.Store.(Pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				resp.Status = "degraded"
				resp.Store = err.Error()
			} else {
				resp.Store = "ok"
			}
		}

		status := http.StatusOK
		if resp.Status == "degraded" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

// StatusResponse is the JSON response for GET /v1/status.
type StatusResponse struct {
	Uptime int64 `json:"uptime_seconds"`
}

func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, StatusResponse{
			Uptime: int64(time.Since(g.startedAt).Seconds()),
		})
	}
}

// ModelsResponse is the JSON response for GET /v1/models.
type ModelsResponse struct {
	Default string   `json:"default,omitempty"`
	Models  []string `json:"models"`
}

func (g *Gateway) handleModels() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := ModelsResponse{Default: g.deps.DefaultModel, Models: []string{}}
		if g.deps.Prices != nil {
			resp.Models = g.deps.Prices.Models()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
