// Package poll triggers pipeline runs from the scheduler and the HTTP API and
// keeps the status of the latest one.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"internship-engine/internal/config"
	"internship-engine/internal/pipeline"
	"internship-engine/internal/scheduler"
)

// ErrBusy is returned when a run is already in progress.
var ErrBusy = errors.New("a run is already in progress")

type Runner interface {
	Run(ctx context.Context, cfg config.Config, opts pipeline.Options) (pipeline.Report, error)
}

type Status struct {
	LastRunAt  string           `json:"last_run_at"`
	LastOkAt   string           `json:"last_ok_at"`
	LastError  string           `json:"last_error"`
	LastAdded  int              `json:"last_added"`
	Running    bool             `json:"running"`
	LastReport *pipeline.Report `json:"last_report,omitempty"`
}

type Poller struct {
	Runner Runner
	// Config returns the current config; it may change between runs.
	Config func() config.Config
	Log    *slog.Logger

	running atomic.Bool
	mu      sync.Mutex
	status  Status
	wg      sync.WaitGroup
}

func (p *Poller) log() *slog.Logger {
	if p.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Log
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// RunNow runs synchronously, or returns ErrBusy.
func (p *Poller) RunNow(ctx context.Context, opts pipeline.Options) (pipeline.Report, error) {
	if !p.running.CompareAndSwap(false, true) {
		return pipeline.Report{}, ErrBusy
	}
	defer p.running.Store(false)
	return p.run(ctx, opts)
}

// Trigger starts a run in the background and returns the status it started
// with. started is false when a run was already going.
func (p *Poller) Trigger(ctx context.Context) (st Status, started bool) {
	if !p.running.CompareAndSwap(false, true) {
		return p.Status(), false
	}
	p.setRunning()
	st = p.Status()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.running.Store(false)
		_, _ = p.run(context.WithoutCancel(ctx), pipeline.Options{})
	}()
	return st, true
}

// Wait blocks until background runs started by Trigger return.
func (p *Poller) Wait() { p.wg.Wait() }

// Loop runs the pipeline every polling.email_seconds until ctx ends. Ticks
// while email is disabled or a run is in progress are skipped.
func (p *Poller) Loop(ctx context.Context) {
	interval := time.Duration(p.Config().Polling.EmailSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	p.log().Info("poller started", "interval", interval.String())

	scheduler.Every(ctx, interval, "email-poll", func(ctx context.Context) error {
		if !p.Config().Email.Enabled {
			return nil
		}
		_, err := p.RunNow(ctx, pipeline.Options{})
		if errors.Is(err, ErrBusy) {
			p.log().Info("poll skipped; a run is in progress")
			return nil
		}
		return err
	}, p.log())
}

func (p *Poller) setRunning() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Running = true
	p.status.LastRunAt = time.Now().Format(time.RFC3339)
	p.status.LastError = ""
}

func (p *Poller) run(ctx context.Context, opts pipeline.Options) (pipeline.Report, error) {
	p.setRunning()
	rep, err := p.Runner.Run(ctx, p.Config(), opts)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Running = false
	p.status.LastAdded = rep.New
	p.status.LastReport = &rep
	if err != nil {
		p.status.LastError = err.Error()
	} else {
		p.status.LastError = ""
		p.status.LastOkAt = time.Now().Format(time.RFC3339)
	}
	return rep, err
}
