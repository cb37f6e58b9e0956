package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"internship-engine/internal/domain"
)

// appendLockKey is the advisory lock id that serializes appends across engines
// sharing one database.
const appendLockKey int64 = 0x696e7465726e // "intern"

const pgSchema = `
CREATE TABLE IF NOT EXISTS candidates (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  phone TEXT NOT NULL,
  linkedin TEXT NOT NULL,
  github TEXT NOT NULL DEFAULT 'N/A',
  internship TEXT NOT NULL,
  subject TEXT NOT NULL,
  sender TEXT NOT NULL,
  received_date TEXT NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  cv TEXT NOT NULL DEFAULT 'N/A',
  attachments TEXT[] NOT NULL DEFAULT '{}',
  reviewed BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_candidates_received ON candidates(received_date);
`

type PostgresSink struct {
	pool *pgxpool.Pool
	log  *slog.Logger

	mu    sync.Mutex
	ready bool
}

func OpenPostgres(ctx context.Context, url string, log *slog.Logger) (*PostgresSink, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PostgresSink{pool: pool, log: log}, nil
}

func (s *PostgresSink) ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	s.ready = true
	return nil
}

func (s *PostgresSink) Append(ctx context.Context, c domain.Candidate) (Outcome, error) {
	if err := s.ensure(ctx); err != nil {
		return Inserted, err
	}
	c = normalize(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Inserted, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return Inserted, fmt.Errorf("append lock: %w", err)
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM candidates WHERE email = $1)`, c.Email).Scan(&exists); err != nil {
		return Inserted, fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		s.log.Info("candidate already stored; skipping", "email", c.Email)
		return SkippedDuplicate, nil
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO candidates(`+candidateCols+`)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (email) DO NOTHING`,
		c.Name, c.Email, c.Phone, c.LinkedIn, c.GitHub, c.Internship,
		c.Subject, c.Sender, c.ReceivedDate, c.Notes, c.CV, c.Attachments, c.Reviewed)
	if err != nil {
		return Inserted, fmt.Errorf("insert candidate: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Inserted, err
	}
	if tag.RowsAffected() == 0 {
		return SkippedDuplicate, nil
	}
	return Inserted, nil
}

func scanCandidate(row pgx.Row) (domain.Candidate, error) {
	var c domain.Candidate
	err := row.Scan(&c.Name, &c.Email, &c.Phone, &c.LinkedIn, &c.GitHub, &c.Internship,
		&c.Subject, &c.Sender, &c.ReceivedDate, &c.Notes, &c.CV, &c.Attachments, &c.Reviewed)
	return normalize(c), err
}

func (s *PostgresSink) List(ctx context.Context) ([]domain.Candidate, error) {
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT `+candidateCols+` FROM candidates ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresSink) Get(ctx context.Context, email string) (domain.Candidate, error) {
	if err := s.ensure(ctx); err != nil {
		return domain.Candidate{}, err
	}
	c, err := scanCandidate(s.pool.QueryRow(ctx,
		`SELECT `+candidateCols+` FROM candidates WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Candidate{}, ErrNotFound
	}
	return c, err
}

func (s *PostgresSink) SetReviewed(ctx context.Context, email string, reviewed bool) error {
	if err := s.ensure(ctx); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE candidates SET reviewed = $1 WHERE email = $2`, reviewed, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
