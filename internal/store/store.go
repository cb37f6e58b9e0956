package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"internship-engine/internal/config"
	"internship-engine/internal/domain"
)

var ErrNotFound = errors.New("candidate not found")

type Outcome int

const (
	Inserted Outcome = iota
	SkippedDuplicate
)

func (o Outcome) String() string {
	if o == SkippedDuplicate {
		return "skipped-duplicate"
	}
	return "inserted"
}

// Sink persists candidates with at most one row per email address.
// Append checks for the email and writes under one lock, so concurrent
// appends of the same address insert exactly once.
type Sink interface {
	Append(ctx context.Context, c domain.Candidate) (Outcome, error)
	List(ctx context.Context) ([]domain.Candidate, error)
	Get(ctx context.Context, email string) (domain.Candidate, error)
	SetReviewed(ctx context.Context, email string, reviewed bool) error
	Close() error
}

// Open returns the sink selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (Sink, error) {
	switch cfg.Storage.Backend {
	case "csv":
		return NewCSVSink(cfg.Resolve(cfg.Storage.CSVPath), log), nil
	case "sqlite", "":
		db, err := OpenSQLite(cfg.Resolve(cfg.Storage.SQLitePath))
		if err != nil {
			return nil, err
		}
		return NewSQLiteSink(db, log), nil
	case "postgres":
		return OpenPostgres(ctx, cfg.Storage.PostgresURL, log)
	default:
		return nil, &config.ConfigError{Field: "storage.backend", Reason: fmt.Sprintf("%q is not supported", cfg.Storage.Backend)}
	}
}

func normalize(c domain.Candidate) domain.Candidate {
	if c.Attachments == nil {
		c.Attachments = []string{}
	}
	return c
}
