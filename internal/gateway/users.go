package gateway

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/flemzord/meterbot/internal/executor"
	"github.com/flemzord/meterbot/internal/pricing"
	"github.com/flemzord/meterbot/internal/store"
	"github.com/flemzord/meterbot/pkg/chat"
)

const defaultUsageLimit = 50

// SubmitRequest is the body of POST /v1/users/{id}/requests.
type SubmitRequest struct {
	Text     string      `json:"text"`
	Image    *chat.Image `json:"image,omitempty"`
	Model    string      `json:"model,omitempty"`
	ChatMode string      `json:"chat_mode,omitempty"`
	// Wait holds the response until the request reaches a terminal state.
	Wait bool `json:"wait,omitempty"`
}

// OutcomeResponse is a terminal outcome with its errors rendered.
type OutcomeResponse struct {
	executor.Outcome
	Error       string `json:"error,omitempty"`
	ChargeError string `json:"charge_error,omitempty"`
}

// RequestResponse describes an accepted request.
type RequestResponse struct {
	RequestID string           `json:"request_id"`
	UserID    int64            `json:"user_id"`
	Outcome   *OutcomeResponse `json:"outcome,omitempty"`
}

func newOutcomeResponse(out executor.Outcome) *OutcomeResponse {
	resp := &OutcomeResponse{Outcome: out}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}
	if out.ChargeErr != nil {
		resp.ChargeError = out.ChargeErr.Error()
	}
	return resp
}

// accepted replies 202 with the handle, or 200 with the outcome when wait
// is set.
func (g *Gateway) accepted(w http.ResponseWriter, r *http.Request, h *executor.Handle, wait bool) {
	resp := RequestResponse{RequestID: h.RequestID, UserID: h.UserID}
	if !wait {
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	out, err := h.Wait(r.Context())
	if err != nil {
		// Client went away; the request keeps running.
		return
	}
	resp.Outcome = newOutcomeResponse(out)
	writeJSON(w, http.StatusOK, resp)
}

func (g *Gateway) handleSubmit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userID(w, r)
		if !ok {
			return
		}
		var req SubmitRequest
		if !decode(w, r, &req) {
			return
		}

		h, err := g.deps.Controller.Submit(r.Context(), executor.Request{
			UserID:   id,
			Model:    req.Model,
			ChatMode: req.ChatMode,
			Input:    chat.Content{Text: req.Text, Image: req.Image},
		})
		if err != nil {
			g.fail(w, r, err)
			return
		}
		g.accepted(w, r, h, req.Wait)
	}
}

func (g *Gateway) handleRetry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userID(w, r)
		if !ok {
			return
		}
		h, err := g.deps.Controller.Retry(r.Context(), id)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		g.accepted(w, r, h, r.URL.Query().Get("wait") == "true")
	}
}

// CancelResponse is the JSON response for POST /v1/users/{id}/cancel.
type CancelResponse struct {
	Result  executor.CancelResult `json:"result"`
	Message string                `json:"message"`
}

func (g *Gateway) handleCancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userID(w, r)
		if !ok {
			return
		}
		res := g.deps.Controller.Cancel(id)
		writeJSON(w, http.StatusOK, CancelResponse{Result: res, Message: res.Message()})
	}
}

// UserStatusResponse is the JSON response for GET /v1/users/{id}/status.
type UserStatusResponse struct {
	UserID    int64           `json:"user_id"`
	Status    executor.Status `json:"status"`
	RequestID string          `json:"request_id,omitempty"`
}

func (g *Gateway) handleUserStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userID(w, r)
		if !ok {
			return
		}
		resp := UserStatusResponse{UserID: id, Status: executor.StatusIdle}
		if h, running := g.deps.Controller.Running(id); running {
			resp.Status = executor.StatusRunning
			resp.RequestID = h.RequestID
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (g *Gateway) handleNewDialog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userID(w, r)
		if !ok {
			return
		}
		d, err := g.deps.Controller.NewDialog(r.Context(), id)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	}
}

func (g *Gateway) handleBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userID(w, r)
		if !ok {
			return
		}
		st, err := g.deps.Ledger.Statement(r.Context(), id)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func (g *Gateway) handleUsage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userID(w, r)
		if !ok {
			return
		}
		log, ok := g.deps.Store.(store.UsageLog)
		if !ok {
			writeError(w, http.StatusNotImplemented, "store keeps no usage log")
			return
		}

		limit := defaultUsageLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = n
		}

		recs, err := log.RecentUsage(r.Context(), id, limit)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		if recs == nil {
			recs = []store.UsageRecord{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func (g *Gateway) handleSetModel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userID(w, r)
		if !ok {
			return
		}
		var body struct {
			Model string `json:"model"`
		}
		if !decode(w, r, &body) {
			return
		}
		if err := g.deps.Controller.SetModel(r.Context(), id, body.Model); err != nil {
			g.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (g *Gateway) handleSetChatMode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userID(w, r)
		if !ok {
			return
		}
		var body struct {
			ChatMode string `json:"chat_mode"`
		}
		if !decode(w, r, &body) {
			return
		}
		d, err := g.deps.Controller.SetChatMode(r.Context(), id, body.ChatMode)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// ChargeRequest is the body of POST /v1/users/{id}/charges. It bills work
// done outside the controller, such as image generation or transcription.
type ChargeRequest struct {
	RequestID string `json:"request_id,omitempty"`
	pricing.Action
}

// ChargeResponse is a committed charge.
type ChargeResponse struct {
	RequestID string     `json:"request_id"`
	Cost      chat.Money `json:"cost"`
	Balance   chat.Money `json:"balance"`
}

func (g *Gateway) handleCharge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := userID(w, r)
		if !ok {
			return
		}
		var req ChargeRequest
		if !decode(w, r, &req) {
			return
		}
		if req.RequestID == "" {
			req.RequestID = uuid.NewString()
		}
		if _, err := g.deps.Controller.User(r.Context(), id); err != nil {
			g.fail(w, r, err)
			return
		}

		ev, err := g.deps.Ledger.Charge(r.Context(), req.RequestID, id, req.Action)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ChargeResponse{RequestID: ev.RequestID, Cost: ev.Cost, Balance: ev.Balance})
	}
}
