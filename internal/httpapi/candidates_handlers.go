package httpapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"internship-engine/internal/domain"
	"internship-engine/internal/events"
	"internship-engine/internal/store"
)

type CandidatesHandler struct {
	Sink store.Sink
	Hub  *events.Hub
}

// List returns every candidate; ?reviewed=true|false filters.
func (h CandidatesHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter *bool
	if v := r.URL.Query().Get("reviewed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, "bad_request", "reviewed must be true or false")
			return
		}
		filter = &b
	}

	all, err := h.Sink.List(r.Context())
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	out := make([]domain.Candidate, 0, len(all))
	for _, c := range all {
		if filter != nil && c.Reviewed != *filter {
			continue
		}
		out = append(out, c)
	}
	WriteJSON(w, http.StatusOK, out)
}

// candidatePath splits /candidates/{email}[/reviewed]. It works on the
// escaped path so an email holding a slash, like the N/A placeholder, can
// be addressed as N%2FA.
func candidatePath(r *http.Request) (email, rest string, ok bool) {
	tail := strings.TrimPrefix(r.URL.EscapedPath(), "/candidates/")
	raw, rest, _ := strings.Cut(tail, "/")
	email, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(email) == "" {
		return "", "", false
	}
	return email, rest, true
}

func (h CandidatesHandler) GetByPath(w http.ResponseWriter, r *http.Request) {
	email, rest, ok := candidatePath(r)
	if !ok || rest != "" {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "expected /candidates/{email}")
		return
	}
	c, err := h.Sink.Get(r.Context(), email)
	if err != nil {
		WriteErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

type reviewedReq struct {
	Reviewed *bool `json:"reviewed"`
}

func (h CandidatesHandler) SetReviewedByPath(w http.ResponseWriter, r *http.Request) {
	email, rest, ok := candidatePath(r)
	if !ok || rest != "reviewed" {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "expected /candidates/{email}/reviewed")
		return
	}

	var req reviewedReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reviewed == nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", `body must be {"reviewed": true|false}`)
		return
	}

	if err := h.Sink.SetReviewed(r.Context(), email, *req.Reviewed); err != nil {
		WriteErr(w, r, err)
		return
	}

	if h.Hub != nil {
		reqID := RequestIDFrom(r.Context())
		h.Hub.Publish(events.MakeEvent(reqID, events.CandidateReviewed, 1, map[string]any{
			"email": email, "reviewed": *req.Reviewed,
		}))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "email": email, "reviewed": *req.Reviewed})
}
