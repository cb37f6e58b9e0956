package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"internship-engine/internal/mailbox"
	"internship-engine/internal/pipeline"
)

type RunCmd struct {
	Subject string `help:"Only unread messages whose subject contains this text"`
	DryRun  bool   `help:"Parse and extract without saving anything or marking messages read" name:"dry-run"`
}

func (c *RunCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := pipeline.Options{DryRun: c.DryRun}
	if c.Subject != "" {
		opts.Criteria = mailbox.SubjectCriteria(c.Subject)
	}

	rep, runErr := a.runner.Run(ctx, a.config(), opts)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return runErr
}
