// Package scheduler runs a task on a fixed interval until its context ends.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

type Task func(ctx context.Context) error

// Every runs task once right away and then on each tick. Ticks that arrive
// while task is still running are dropped by the ticker, so runs never overlap.
func Every(ctx context.Context, interval time.Duration, name string, task Task, log *slog.Logger) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("task", name)

	run := func() {
		start := time.Now()
		if err := task(ctx); err != nil {
			log.Error("scheduled task failed", "err", err, "dur_ms", time.Since(start).Milliseconds())
			return
		}
		log.Debug("scheduled task done", "dur_ms", time.Since(start).Milliseconds())
	}

	if ctx.Err() != nil {
		return
	}
	run()

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
