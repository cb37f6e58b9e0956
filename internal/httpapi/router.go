package httpapi

import (
	"log/slog"
	"net/http"
)

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	if d.Log == nil {
		d.Log = slog.New(slog.DiscardHandler)
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: HealthHandler{Sink: d.Sink}.Health,
	}))

	// Candidates
	cand := CandidatesHandler{Sink: d.Sink, Hub: d.Hub}
	mux.HandleFunc("/candidates", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: cand.List,
	}))
	mux.HandleFunc("/candidates/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: cand.GetByPath,         // /candidates/{email}
		http.MethodPut: cand.SetReviewedByPath, // /candidates/{email}/reviewed
	}))

	att := AttachmentsHandler{Dir: func() string {
		cfg := d.currentConfig()
		return cfg.Resolve(cfg.Storage.AttachmentDir)
	}}
	mux.HandleFunc("/attachments/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: att.GetByPath,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
		Hub:         d.Hub,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal, Open: d.Secrets}
	mux.HandleFunc("/api/secrets/imap", localOnly(methodMux(map[string]http.HandlerFunc{
		http.MethodPost:   sh.SetIMAPPassword,
		http.MethodDelete: sh.DeleteIMAPPassword,
	})))

	// Scrape
	sch := ScrapeHandler{Poller: d.Poller, Hub: d.Hub}
	mux.HandleFunc("/scrape/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sch.Status,
	}))
	mux.HandleFunc("/scrape/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sch.Run,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics)
	}

	return mux
}

// Handler is NewMux wrapped in the standard middleware chain.
func Handler(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return Chain(NewMux(d), RequestID, Recover(log), AccessLog(log), Cors)
}
