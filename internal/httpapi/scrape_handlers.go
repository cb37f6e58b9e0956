package httpapi

import (
	"net/http"

	"internship-engine/internal/events"
	"internship-engine/internal/poll"
)

type ScrapeHandler struct {
	Poller *poll.Poller
	Hub    *events.Hub
}

func (h ScrapeHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Poller.Status())
}

// Run starts a pipeline run in the background. 409 if one is already running.
func (h ScrapeHandler) Run(w http.ResponseWriter, r *http.Request) {
	st, started := h.Poller.Trigger(r.Context())
	if !started {
		WriteJSON(w, http.StatusConflict, map[string]any{"ok": false, "msg": "already running", "status": st})
		return
	}
	if h.Hub != nil {
		h.Hub.Publish(events.MakeEvent(RequestIDFrom(r.Context()), events.RunStarted, 1, nil))
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true, "status": st})
}
