package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"

	"internship-engine/internal/domain"
)

type candidateRow struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	Phone        string `db:"phone"`
	LinkedIn     string `db:"linkedin"`
	GitHub       string `db:"github"`
	Internship   string `db:"internship"`
	Subject      string `db:"subject"`
	Sender       string `db:"sender"`
	ReceivedDate string `db:"received_date"`
	Notes        string `db:"notes"`
	CV           string `db:"cv"`
	Attachments  string `db:"attachments"`
	Reviewed     bool   `db:"reviewed"`
}

func toRow(c domain.Candidate) (candidateRow, error) {
	c = normalize(c)
	atts, err := json.Marshal(c.Attachments)
	if err != nil {
		return candidateRow{}, err
	}
	return candidateRow{
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		LinkedIn:     c.LinkedIn,
		GitHub:       c.GitHub,
		Internship:   c.Internship,
		Subject:      c.Subject,
		Sender:       c.Sender,
		ReceivedDate: c.ReceivedDate,
		Notes:        c.Notes,
		CV:           c.CV,
		Attachments:  string(atts),
		Reviewed:     c.Reviewed,
	}, nil
}

func (r candidateRow) candidate() domain.Candidate {
	c := domain.Candidate{
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		LinkedIn:     r.LinkedIn,
		GitHub:       r.GitHub,
		Internship:   r.Internship,
		Subject:      r.Subject,
		Sender:       r.Sender,
		ReceivedDate: r.ReceivedDate,
		Notes:        r.Notes,
		CV:           r.CV,
		Reviewed:     r.Reviewed,
	}
	_ = json.Unmarshal([]byte(r.Attachments), &c.Attachments)
	return normalize(c)
}

const candidateCols = `name, email, phone, linkedin, github, internship, subject, sender, received_date, notes, cv, attachments, reviewed`

type SQLiteSink struct {
	db  *sqlx.DB
	log *slog.Logger

	mu    sync.Mutex
	ready bool
}

func NewSQLiteSink(db *sqlx.DB, log *slog.Logger) *SQLiteSink {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &SQLiteSink{db: db, log: log}
}

// ensure runs the migrations once; callers hold s.mu.
func (s *SQLiteSink) ensure(ctx context.Context) error {
	if s.ready {
		return nil
	}
	if err := Migrate(ctx, s.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	s.ready = true
	return nil
}

func Migrate(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.GetContext(ctx, &v, `PRAGMA user_version;`); err != nil {
		return err
	}

	if v < 1 {
		// ---- Schema v1 ----
		if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS candidates (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  phone TEXT NOT NULL,
  linkedin TEXT NOT NULL,
  internship TEXT NOT NULL,
  subject TEXT NOT NULL,
  sender TEXT NOT NULL,
  received_date TEXT NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  cv TEXT NOT NULL DEFAULT 'N/A'
);
`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
CREATE UNIQUE INDEX IF NOT EXISTS idx_candidates_email
ON candidates(email);
`); err != nil {
			return err
		}
	}

	if v < 2 {
		// ---- Schema v2: github, attachment list, review flag ----
		if !columnExists(ctx, tx, "candidates", "github") {
			if _, err := tx.ExecContext(ctx, `ALTER TABLE candidates ADD COLUMN github TEXT NOT NULL DEFAULT 'N/A';`); err != nil {
				return err
			}
		}
		if !columnExists(ctx, tx, "candidates", "attachments") {
			if _, err := tx.ExecContext(ctx, `ALTER TABLE candidates ADD COLUMN attachments TEXT NOT NULL DEFAULT '[]';`); err != nil {
				return err
			}
		}
		if !columnExists(ctx, tx, "candidates", "reviewed") {
			if _, err := tx.ExecContext(ctx, `ALTER TABLE candidates ADD COLUMN reviewed INTEGER NOT NULL DEFAULT 0;`); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_candidates_received
ON candidates(received_date);
`); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `PRAGMA user_version = 2;`); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func columnExists(ctx context.Context, tx *sqlx.Tx, table, col string) bool {
	query := fmt.Sprintf(`
SELECT 1
FROM pragma_table_info('%s')
WHERE name = ?
LIMIT 1;
`, table)

	var one int
	err := tx.GetContext(ctx, &one, query, col)
	return err == nil
}

func (s *SQLiteSink) Append(ctx context.Context, c domain.Candidate) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx); err != nil {
		return Inserted, err
	}

	row, err := toRow(c)
	if err != nil {
		return Inserted, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Inserted, err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.GetContext(ctx, &n, `SELECT COUNT(1) FROM candidates WHERE email = ?;`, row.Email); err != nil {
		return Inserted, fmt.Errorf("check duplicate: %w", err)
	}
	if n > 0 {
		s.log.Info("candidate already stored; skipping", "email", row.Email)
		return SkippedDuplicate, nil
	}

	if _, err := tx.NamedExecContext(ctx, `
INSERT INTO candidates(`+candidateCols+`)
VALUES(:name, :email, :phone, :linkedin, :github, :internship, :subject, :sender, :received_date, :notes, :cv, :attachments, :reviewed);`,
		row); err != nil {
		return Inserted, fmt.Errorf("insert candidate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Inserted, err
	}
	return Inserted, nil
}

func (s *SQLiteSink) List(ctx context.Context) ([]domain.Candidate, error) {
	s.mu.Lock()
	if err := s.ensure(ctx); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.mu.Unlock()

	var rows []candidateRow
	if err := s.db.SelectContext(ctx, &rows, `
SELECT id, `+candidateCols+`
FROM candidates
ORDER BY id;`); err != nil {
		return nil, err
	}
	out := make([]domain.Candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.candidate())
	}
	return out, nil
}

func (s *SQLiteSink) Get(ctx context.Context, email string) (domain.Candidate, error) {
	s.mu.Lock()
	if err := s.ensure(ctx); err != nil {
		s.mu.Unlock()
		return domain.Candidate{}, err
	}
	s.mu.Unlock()

	var r candidateRow
	err := s.db.GetContext(ctx, &r, `
SELECT id, `+candidateCols+`
FROM candidates
WHERE email = ?
LIMIT 1;`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Candidate{}, ErrNotFound
	}
	if err != nil {
		return domain.Candidate{}, err
	}
	return r.candidate(), nil
}

func (s *SQLiteSink) SetReviewed(ctx context.Context, email string, reviewed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `UPDATE candidates SET reviewed = ? WHERE email = ?;`, reviewed, email)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
