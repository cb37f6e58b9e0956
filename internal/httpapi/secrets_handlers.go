package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"

	"internship-engine/internal/config"
	"internship-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
	Open   func(config.Config) (secrets.Store, error)
}

type setIMAPPasswordReq struct {
	Password string `json:"password"`
}

func (h SecretsHandler) store(cfg config.Config) (secrets.Store, error) {
	if h.Open != nil {
		return h.Open(cfg)
	}
	return secrets.Open(cfg)
}

func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var req setIMAPPasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if strings.TrimSpace(req.Password) == "" {
		WriteError(w, r, http.StatusBadRequest, "bad_request", "password is empty")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if strings.TrimSpace(cfg.Email.Username) == "" || strings.TrimSpace(cfg.Email.IMAPHost) == "" {
		WriteError(w, r, http.StatusBadRequest, "config_incomplete", "set email.imap_host and email.username first")
		return
	}
	st, err := h.store(cfg)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "secrets_unavailable", err.Error())
		return
	}
	if err := st.SetPassword(secrets.IMAPAccount(cfg), req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "store_failed", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) DeleteIMAPPassword(w http.ResponseWriter, r *http.Request) {
	cfg := h.CfgVal.Load().(config.Config)
	st, err := h.store(cfg)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "secrets_unavailable", err.Error())
		return
	}
	if err := st.DeletePassword(secrets.IMAPAccount(cfg)); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "delete_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
