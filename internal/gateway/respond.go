package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	ctxengine "github.com/flemzord/meterbot/internal/context"
	"github.com/flemzord/meterbot/internal/executor"
	"github.com/flemzord/meterbot/internal/pricing"
	"github.com/flemzord/meterbot/internal/store"
)

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, executor.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, executor.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, executor.ErrEmptyInput),
		errors.Is(err, executor.ErrUnknownModel),
		errors.Is(err, executor.ErrUnknownChatMode),
		errors.Is(err, pricing.ErrUnknownModel),
		errors.Is(err, pricing.ErrUnknownImageOption),
		errors.Is(err, pricing.ErrNegativeQuantity),
		errors.Is(err, pricing.ErrUnknownAction),
		errors.Is(err, ctxengine.ErrContextOverflow):
		return http.StatusBadRequest
	case errors.Is(err, executor.ErrNothingToRetry),
		errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, executor.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Server errors are logged and their
// details withheld.
func (g *Gateway) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("gateway: request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// userID parses the {id} URL parameter.
func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

// decode reads a JSON body into v. An empty body leaves v unchanged.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
