package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"internship-engine/internal/config"
	"internship-engine/internal/store"
)

// APIError is the body of every non-2xx JSON response.
type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// WriteErr picks the status and code from err.
func WriteErr(w http.ResponseWriter, r *http.Request, err error) {
	var ce *config.ConfigError
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, r, http.StatusNotFound, "not_found", "no candidate with that email")
	case errors.As(err, &ce):
		WriteError(w, r, http.StatusBadRequest, "config_error", ce.Error())
	default:
		WriteError(w, r, http.StatusInternalServerError, "store_error", err.Error())
	}
}
