// Package pipeline runs the mailbox → parser → extractor → sinks flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"internship-engine/internal/attachments"
	"internship-engine/internal/config"
	"internship-engine/internal/dedup"
	"internship-engine/internal/domain"
	"internship-engine/internal/events"
	"internship-engine/internal/extract"
	"internship-engine/internal/mailbox"
	"internship-engine/internal/message"
	"internship-engine/internal/metrics"
	"internship-engine/internal/secrets"
	"internship-engine/internal/store"
)

type AttachmentSaver interface {
	Save(ctx context.Context, atts []message.Attachment, dir string) (attachments.Result, error)
}

type Publisher interface {
	Publish(evt string)
}

// Options change a single run.
type Options struct {
	// Criteria replaces cfg.Email.SearchCriteria when set.
	Criteria string
	// DryRun parses and extracts but writes nothing and leaves messages unread.
	DryRun bool
}

// Runner owns no per-run state besides the run lock; everything else comes
// from the config passed to RunOnce.
type Runner struct {
	Dialer      mailbox.Dialer
	Sink        store.Sink
	Attachments AttachmentSaver
	Extractor   *extract.Extractor
	Passwords   secrets.Store

	// Dedup, Metrics and Events are optional.
	Dedup   dedup.Checker
	Metrics *metrics.Recorder
	Events  Publisher

	Log   *slog.Logger
	Clock func() time.Time

	mu sync.Mutex
}

func (r *Runner) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}

func (r *Runner) log() *slog.Logger {
	if r.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Log
}

// RunOnce is Run with default options.
func (r *Runner) RunOnce(ctx context.Context, cfg config.Config) (Report, error) {
	return r.Run(ctx, cfg, Options{})
}

// Run connects, lists matching messages and handles each in turn. Runs are
// serialized. A config, connect or listing fault ends the run with State
// Failed and is returned; message faults are recorded in Report.Failures.
// ctx is only checked between messages.
func (r *Runner) Run(ctx context.Context, cfg config.Config, opts Options) (rep Report, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep = Report{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
		State:     Idle,
		DryRun:    opts.DryRun,
		Failures:  []Failure{},
	}
	log := r.log().With("run_id", rep.RunID)

	defer func() {
		rep.FinishedAt = r.now()
		result := "ok"
		if err != nil {
			rep.State = Failed
			rep.Error = err.Error()
			result = "failed"
			log.Error("run failed", "err", err)
		} else {
			rep.State = Done
			log.Info("run finished",
				"found", rep.Found, "processed", rep.Processed, "new", rep.New,
				"duplicates", rep.Duplicates, "failures", len(rep.Failures))
		}
		r.Metrics.Run(result, rep.Duration().Seconds())
		r.publish(events.RunFinished, rep.summary())
	}()

	cfg, v := config.NormalizeAndValidate(cfg)
	settings, err := r.settings(cfg, v)
	if err != nil {
		return rep, err
	}
	criteria := cfg.Email.SearchCriteria
	if strings.TrimSpace(opts.Criteria) != "" {
		criteria = opts.Criteria
	}
	if _, perr := mailbox.ParseCriteria(criteria); perr != nil {
		return rep, &config.ConfigError{Field: "email.search_criteria", Reason: perr.Error()}
	}

	sess, err := r.Dialer.Dial(ctx, settings)
	if err != nil {
		return rep, err
	}
	defer sess.Close()
	rep.State = Connected
	log.Info("connected", "host", settings.Host, "folder", settings.Folder, "dry_run", opts.DryRun)

	rep.State = Listing
	ids, err := sess.Search(ctx, criteria)
	if err != nil {
		return rep, fmt.Errorf("listing messages: %w", err)
	}
	rep.Found = len(ids)
	if limit := cfg.Email.MaxMessages; limit > 0 && len(ids) > limit {
		log.Info("more messages than max_messages; the rest wait for the next run", "found", len(ids), "max", limit)
		ids = ids[:limit]
	}
	log.Info("messages to process", "count", len(ids), "criteria", criteria)

	var limiter *rate.Limiter
	if cfg.Email.FetchPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Email.FetchPerSecond), 1)
	}

	h := handler{
		r:      r,
		cfg:    cfg,
		opts:   opts,
		sess:   sess,
		attDir: cfg.Resolve(cfg.Storage.AttachmentDir),
		log:    log,
		report: &rep,
	}
	// message work is not cancelled midway; the session timeout still bounds it
	mctx := context.WithoutCancel(ctx)

	for i, id := range ids {
		if limiter != nil {
			if werr := limiter.Wait(ctx); werr != nil {
				log.Warn("run stopped between messages", "done", i, "remaining", len(ids)-i, "err", werr)
				break
			}
		} else if ctx.Err() != nil {
			log.Warn("run stopped between messages", "done", i, "remaining", len(ids)-i, "err", ctx.Err())
			break
		}
		h.handle(mctx, id)
	}
	return rep, nil
}

func (r *Runner) settings(cfg config.Config, v config.Validation) (mailbox.Settings, error) {
	if cfg.Email.IMAPHost == "" {
		return mailbox.Settings{}, &config.ConfigError{Field: "email.imap_host", Reason: "is required"}
	}
	if cfg.Email.Username == "" {
		return mailbox.Settings{}, &config.ConfigError{Field: "email.username", Reason: "is required"}
	}
	if !v.OK() {
		return mailbox.Settings{}, &config.ConfigError{Field: "file", Reason: "is invalid: " + strings.Join(v.Errors, "; ")}
	}
	if r.Passwords == nil {
		return mailbox.Settings{}, &config.ConfigError{Field: "email.password", Reason: "has no secret store"}
	}
	pw, err := r.Passwords.GetPassword(secrets.IMAPAccount(cfg))
	if errors.Is(err, secrets.ErrNotFound) || (err == nil && pw == "") {
		return mailbox.Settings{}, &config.ConfigError{Field: "email.password", Reason: "is not set; store it with `engine secret set`"}
	}
	if err != nil {
		return mailbox.Settings{}, fmt.Errorf("reading imap password: %w", err)
	}
	return mailbox.Settings{
		Host:     cfg.Email.IMAPHost,
		Port:     cfg.Email.IMAPPort,
		Username: cfg.Email.Username,
		Password: pw,
		Folder:   cfg.Email.Mailbox,
		Timeout:  time.Duration(cfg.Email.TimeoutSeconds) * time.Second,
	}, nil
}

func (r *Runner) publish(typ string, data any) {
	if r.Events == nil {
		return
	}
	r.Events.Publish(events.MakeEvent("", typ, 1, data))
}

func (rep Report) summary() map[string]any {
	return map[string]any{
		"runId":      rep.RunID,
		"state":      rep.State.String(),
		"processed":  rep.Processed,
		"new":        rep.New,
		"duplicates": rep.Duplicates,
		"failures":   len(rep.Failures),
	}
}

// handler carries one run's per-message state.
type handler struct {
	r      *Runner
	cfg    config.Config
	opts   Options
	sess   mailbox.Session
	attDir string
	log    *slog.Logger
	report *Report
}

func (h *handler) handle(ctx context.Context, id mailbox.MessageID) {
	log := h.log.With("uid", id.String())
	rep := h.report

	raw, err := h.sess.FetchRaw(ctx, id)
	if err != nil {
		h.failed(log, &StageError{MessageID: id.String(), Stage: Fetching, Err: err})
		return
	}
	rep.Processed++

	msg := message.Parse(raw)
	if msg.Status == message.StatusDegraded {
		log.Warn("message could not be parsed; continuing with placeholders", "err", msg.Err)
	}
	log = log.With("message_id", msg.MessageID)

	if h.seenBefore(ctx, log, msg.MessageID) {
		rep.Duplicates++
		h.r.Metrics.Message("already-seen")
		h.markRead(ctx, id)
		return
	}

	c := h.candidate(msg)

	if !h.opts.DryRun {
		res, err := h.r.Attachments.Save(ctx, msg.Attachments, h.attDir)
		if err != nil {
			log.Error("attachments not saved", "dir", h.attDir, "err", err)
		}
		h.r.Metrics.AttachmentFailed(res.Failed)
		c.Attachments = res.Paths
		if len(res.Paths) > 0 {
			c.CV = res.Paths[0]
		}
	}

	if h.opts.DryRun {
		h.dryRun(ctx, log, id, c)
		return
	}

	outcome, err := h.r.Sink.Append(ctx, c)
	if err == nil {
		h.mark(ctx, log, msg.MessageID)
	}
	switch {
	case err != nil:
		h.failed(log, &StageError{MessageID: id.String(), Stage: Persisting, Err: err})
	case outcome == store.SkippedDuplicate:
		rep.Duplicates++
		h.r.Metrics.Message(outcome.String())
		log.Info("candidate already stored", "email", c.Email)
	default:
		rep.New++
		h.r.Metrics.Message(outcome.String())
		h.r.Metrics.Inserted()
		log.Info("candidate stored", "email", c.Email, "internship", c.Internship, "attachments", len(c.Attachments))
		h.r.publish(events.CandidateCreated, map[string]string{"email": c.Email, "name": c.Name})
	}

	// marked even when persisting failed so one bad row cannot wedge the inbox
	h.markRead(ctx, id)
}

func (h *handler) candidate(msg message.Message) domain.Candidate {
	c := h.r.Extractor.Extract(extract.Input{
		Body:    msg.Body,
		Sender:  msg.Sender,
		Subject: msg.Subject,
		CodeMap: h.cfg.Intake.CodeMap,
	})

	if strings.TrimSpace(c.Email) == "" {
		c.Email = domain.NA
	}
	c.Subject = orNA(msg.Subject)
	c.Sender = orNA(msg.Sender)
	c.ReceivedDate = h.r.now().Format(domain.ReceivedDateLayout)
	c.Notes = msg.Body
	if strings.TrimSpace(c.Notes) == "" && msg.HTML != "" {
		c.Notes = message.TextFromHTML(msg.HTML)
	}
	if c.Attachments == nil {
		c.Attachments = []string{}
	}
	if c.CV == "" {
		c.CV = domain.NA
	}
	return c
}

// dryRun reports c without writing anything. An email the sink already
// holds counts as a duplicate, so New matches what a real run would insert.
func (h *handler) dryRun(ctx context.Context, log *slog.Logger, id mailbox.MessageID, c domain.Candidate) {
	rep := h.report
	_, err := h.r.Sink.Get(ctx, c.Email)
	switch {
	case err == nil:
		rep.Duplicates++
		h.r.Metrics.Message("dry-run-duplicate")
		log.Info("dry run: candidate already stored", "email", c.Email)
	case errors.Is(err, store.ErrNotFound):
		rep.Candidates = append(rep.Candidates, c)
		rep.New++
		h.r.Metrics.Message("dry-run")
	default:
		h.failed(log, &StageError{MessageID: id.String(), Stage: Persisting, Err: err})
	}
}

func (h *handler) seenBefore(ctx context.Context, log *slog.Logger, messageID string) bool {
	if h.r.Dedup == nil || h.opts.DryRun || messageID == "" {
		return false
	}
	seen, err := h.r.Dedup.Seen(ctx, messageID)
	if err != nil {
		log.Warn("dedup check failed; processing anyway", "err", err)
		return false
	}
	if seen {
		log.Info("message already handled by an earlier run")
	}
	return seen
}

// mark runs only after the sink has the candidate; until then the message
// stays eligible for the next run.
func (h *handler) mark(ctx context.Context, log *slog.Logger, messageID string) {
	if h.r.Dedup == nil || messageID == "" {
		return
	}
	if err := h.r.Dedup.Mark(ctx, messageID); err != nil {
		log.Warn("dedup mark failed", "err", err)
	}
}

func (h *handler) markRead(ctx context.Context, id mailbox.MessageID) {
	if h.opts.DryRun {
		return
	}
	h.sess.MarkRead(ctx, id)
}

func (h *handler) failed(log *slog.Logger, se *StageError) {
	h.report.fail(se)
	h.r.Metrics.Message("failed")
	log.Error("message failed", "stage", se.Stage.String(), "err", se.Err)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return domain.NA
	}
	return s
}
