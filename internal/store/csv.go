package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"internship-engine/internal/domain"
)

var csvHeader = []string{
	"name", "email", "phone", "linkedin", "github", "internship",
	"subject", "sender", "received_date", "notes", "cv", "attachments", "reviewed",
}

const lockRetry = 50 * time.Millisecond

// CSVSink appends candidates to a CSV file. A sidecar flock makes the
// check-and-append exclusive across processes sharing the file.
type CSVSink struct {
	path string
	lock *flock.Flock
	log  *slog.Logger

	mu    sync.Mutex
	ready bool
}

func NewCSVSink(path string, log *slog.Logger) *CSVSink {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &CSVSink{
		path: path,
		lock: flock.New(path + ".lock"),
		log:  log,
	}
}

func (s *CSVSink) exclusive(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	ok, err := s.lock.TryLockContext(ctx, lockRetry)
	if err != nil || !ok {
		s.mu.Unlock()
		if err == nil {
			err = errors.New("csv lock not acquired")
		}
		return nil, fmt.Errorf("lock %s: %w", s.path, err)
	}
	return func() {
		_ = s.lock.Unlock()
		s.mu.Unlock()
	}, nil
}

// ensure writes the header once when the file is missing or empty; callers hold the lock.
func (s *CSVSink) ensure() error {
	if s.ready {
		return nil
	}
	st, err := os.Stat(s.path)
	if err == nil && st.Size() > 0 {
		s.ready = true
		return nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(csvHeader)
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	if err := writeSynced(s.path, buf.Bytes(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY); err != nil {
		return fmt.Errorf("init csv: %w", err)
	}
	s.ready = true
	return nil
}

func (s *CSVSink) Append(ctx context.Context, c domain.Candidate) (Outcome, error) {
	unlock, err := s.exclusive(ctx)
	if err != nil {
		return Inserted, err
	}
	defer unlock()

	if err := s.ensure(); err != nil {
		return Inserted, err
	}

	header, existing, err := s.readAll()
	if err != nil {
		return Inserted, err
	}
	for _, e := range existing {
		if e.Email == c.Email {
			s.log.Info("candidate already stored; skipping", "email", c.Email)
			return SkippedDuplicate, nil
		}
	}

	// rows are written in csvHeader order, so an older layout is upgraded first
	if !slices.Equal(header, csvHeader) {
		s.log.Info("upgrading csv header", "path", s.path, "from", strings.Join(header, ","))
		if err := s.rewrite(existing); err != nil {
			return Inserted, fmt.Errorf("upgrade csv header: %w", err)
		}
	}

	rec, err := toRecord(c)
	if err != nil {
		return Inserted, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(rec)
	w.Flush()
	if err := w.Error(); err != nil {
		return Inserted, err
	}
	// one write call so readers never see half a row
	if err := writeSynced(s.path, buf.Bytes(), os.O_APPEND|os.O_WRONLY); err != nil {
		return Inserted, fmt.Errorf("append candidate: %w", err)
	}
	return Inserted, nil
}

func (s *CSVSink) List(ctx context.Context) ([]domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok, err := s.lock.TryRLockContext(ctx, lockRetry)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("csv lock not acquired")
		}
		return nil, fmt.Errorf("lock %s: %w", s.path, err)
	}
	defer func() { _ = s.lock.Unlock() }()

	_, all, err := s.readAll()
	return all, err
}

func (s *CSVSink) Get(ctx context.Context, email string) (domain.Candidate, error) {
	all, err := s.List(ctx)
	if err != nil {
		return domain.Candidate{}, err
	}
	for _, c := range all {
		if c.Email == email {
			return c, nil
		}
	}
	return domain.Candidate{}, ErrNotFound
}

func (s *CSVSink) SetReviewed(ctx context.Context, email string, reviewed bool) error {
	unlock, err := s.exclusive(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	_, all, err := s.readAll()
	if err != nil {
		return err
	}
	found := false
	for i := range all {
		if all[i].Email == email {
			all[i].Reviewed = reviewed
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}
	return s.rewrite(all)
}

// rewrite replaces the file with the full header and the given rows
// through a temp file and rename; callers hold the lock.
func (s *CSVSink) rewrite(all []domain.Candidate) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(csvHeader)
	for _, c := range all {
		rec, err := toRecord(c)
		if err != nil {
			return err
		}
		_ = w.Write(rec)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := writeSynced(tmp, buf.Bytes(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *CSVSink) Close() error { return s.lock.Close() }

// readAll maps columns by header name, so files written before a column
// existed still load with that field empty. The header is returned as read.
func (s *CSVSink) readAll() ([]string, []domain.Candidate, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, []domain.Candidate{}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, []domain.Candidate{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}

	out := []domain.Candidate{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		col := func(name string) string {
			if i, ok := idx[name]; ok && i < len(rec) {
				return decodeField(rec[i])
			}
			return ""
		}
		c := domain.Candidate{
			Name:         col("name"),
			Email:        col("email"),
			Phone:        col("phone"),
			LinkedIn:     col("linkedin"),
			GitHub:       col("github"),
			Internship:   col("internship"),
			Subject:      col("subject"),
			Sender:       col("sender"),
			ReceivedDate: col("received_date"),
			Notes:        col("notes"),
			CV:           col("cv"),
		}
		if i, ok := idx["attachments"]; ok && i < len(rec) && rec[i] != "" {
			_ = json.Unmarshal([]byte(rec[i]), &c.Attachments)
		}
		c.Reviewed, _ = strconv.ParseBool(col("reviewed"))
		out = append(out, normalize(c))
	}
	return header, out, nil
}

func toRecord(c domain.Candidate) ([]string, error) {
	c = normalize(c)
	atts, err := json.Marshal(c.Attachments)
	if err != nil {
		return nil, err
	}
	text := []string{
		c.Name, c.Email, c.Phone, c.LinkedIn, c.GitHub, c.Internship,
		c.Subject, c.Sender, c.ReceivedDate, c.Notes, c.CV,
	}
	for i, v := range text {
		text[i] = encodeField(v)
	}
	return append(text, string(atts), strconv.FormatBool(c.Reviewed)), nil
}

// encoding/csv turns \r\n into \n even inside quoted fields, so values
// holding a carriage return are stored as a Go string literal. Values that
// already start with a quote are quoted too, which keeps decoding unambiguous.
func encodeField(v string) string {
	if strings.ContainsRune(v, '\r') || strings.HasPrefix(v, `"`) {
		return strconv.Quote(v)
	}
	return v
}

func decodeField(v string) string {
	if strings.HasPrefix(v, `"`) {
		if u, err := strconv.Unquote(v); err == nil {
			return u
		}
	}
	return v
}

func writeSynced(path string, b []byte, flag int) error {
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
