package httpapi

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"internship-engine/internal/config"
	"internship-engine/internal/events"
	"internship-engine/internal/poll"
	"internship-engine/internal/secrets"
	"internship-engine/internal/store"
)

type Deps struct {
	Sink   store.Sink
	Hub    *events.Hub
	Poller *poll.Poller

	CfgVal *atomic.Value // stores config.Config

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Secrets opens the password store for a config; secrets.Open when nil.
	Secrets func(config.Config) (secrets.Store, error)

	// Metrics serves /metrics when set.
	Metrics http.Handler

	Log *slog.Logger
}

func (d Deps) currentConfig() config.Config {
	return d.CfgVal.Load().(config.Config)
}
