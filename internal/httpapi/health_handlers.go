package httpapi

import (
	"net/http"
	"time"

	"internship-engine/internal/store"
)

type HealthHandler struct {
	Sink store.Sink
}

// Health reports ok and whether the candidate store answers a list.
func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"ok":   true,
		"time": time.Now().Format(time.RFC3339),
	}
	if h.Sink != nil {
		if _, err := h.Sink.List(r.Context()); err != nil {
			resp["ok"] = false
			resp["store_error"] = err.Error()
			WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}
