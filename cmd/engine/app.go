package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"internship-engine/internal/attachments"
	"internship-engine/internal/config"
	"internship-engine/internal/dedup"
	"internship-engine/internal/events"
	"internship-engine/internal/extract"
	"internship-engine/internal/logging"
	"internship-engine/internal/mailbox"
	"internship-engine/internal/metrics"
	"internship-engine/internal/pipeline"
	"internship-engine/internal/secrets"
	"internship-engine/internal/store"
)

// app is everything a command needs, built from the data dir.
type app struct {
	cfgPath string
	cfgVal  *atomic.Value // stores config.Config
	log     *slog.Logger

	sink     store.Sink
	dedup    *dedup.Filter
	hub      *events.Hub
	registry *prometheus.Registry
	runner   *pipeline.Runner
}

func loadConfig(g *Globals) (string, config.Config, error) {
	if err := os.MkdirAll(g.DataDir, 0o755); err != nil {
		return "", config.Config{}, err
	}
	path, err := config.EnsureUserConfig(g.DataDir)
	if err != nil {
		return "", config.Config{}, fmt.Errorf("config bootstrap failed: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return "", config.Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	// the data dir on the command line wins over the one in the file
	cfg.App.DataDir = g.DataDir
	if err := config.OverlayCodeMap(&cfg, cfg.Resolve("codes.yml")); err != nil {
		return "", config.Config{}, err
	}
	if g.LogLevel != "" {
		cfg.Logging.Level = g.LogLevel
	}
	return path, cfg, nil
}

func newApp(ctx context.Context, g *Globals) (*app, error) {
	path, cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, err
	}

	var cfgVal atomic.Value
	cfgVal.Store(cfg)

	a := &app{
		cfgPath:  path,
		cfgVal:   &cfgVal,
		log:      log,
		hub:      events.NewHub(),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.sink, err = store.Open(ctx, cfg, logging.Component(log, "store"))
	if err != nil {
		return nil, fmt.Errorf("open candidate store: %w", err)
	}

	passwords, err := secrets.Open(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.runner = &pipeline.Runner{
		Dialer:      mailbox.IMAPDialer{Log: logging.Component(log, "mailbox")},
		Sink:        a.sink,
		Attachments: attachments.NewSink(logging.Component(log, "attachments")),
		Extractor:   extract.New(logging.Component(log, "extract")),
		Passwords:   passwords,
		Metrics:     metrics.New(a.registry),
		Events:      a.hub,
		Log:         logging.Component(log, "pipeline"),
	}

	if url := cfg.Dedup.RedisURL; url != "" {
		dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		f, err := dedup.Open(dctx, url, time.Duration(cfg.Dedup.TTLHours)*time.Hour)
		if err != nil {
			// runs still work without it; the sink rejects duplicate emails anyway
			log.Warn("dedup disabled", "err", err)
		} else {
			a.dedup = f
			a.runner.Dedup = f
		}
	}

	log.Debug("engine ready", "config", path, "store", cfg.Storage.Backend)
	return a, nil
}

func (a *app) config() config.Config {
	return a.cfgVal.Load().(config.Config)
}

func (a *app) loadCfg() (config.Config, error) {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return cfg, err
	}
	cfg.App.DataDir = a.config().App.DataDir
	err = config.OverlayCodeMap(&cfg, cfg.Resolve("codes.yml"))
	return cfg, err
}

func (a *app) Close() {
	if a.dedup != nil {
		_ = a.dedup.Close()
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Warn("closing store", "err", err)
		}
	}
}
