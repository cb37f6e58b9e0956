package attachments

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"internship-engine/internal/message"
)

// Result lists what Save wrote and how many entries it could not write.
type Result struct {
	Paths   []string
	Skipped int
	Failed  int
}

type Sink struct {
	log *slog.Logger
}

func NewSink(log *slog.Logger) *Sink {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Sink{log: log}
}

// Save writes each attachment to dir/<filename>. Entries without a filename or
// data are skipped; a failed write is logged and the rest are still written.
// A later attachment with the same name overwrites the earlier file, and its
// path is reported once.
func (s *Sink) Save(ctx context.Context, atts []message.Attachment, dir string) (Result, error) {
	res := Result{Paths: []string{}}
	if len(atts) == 0 {
		return res, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return res, fmt.Errorf("create attachment dir %s: %w", dir, err)
	}

	seen := make(map[string]bool, len(atts))
	for _, a := range atts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		name := safeName(a.Filename)
		if name == "" || len(a.Data) == 0 {
			res.Skipped++
			s.log.Debug("attachment skipped", "filename", a.Filename, "bytes", len(a.Data))
			continue
		}

		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			res.Failed++
			s.log.Error("attachment write failed", "path", path, "err", err)
			continue
		}
		if !seen[path] {
			seen[path] = true
			res.Paths = append(res.Paths, path)
		}
	}
	return res, nil
}

// safeName keeps only the final path element so a filename cannot leave dir.
func safeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, `\`, "/"))
	if name == "" {
		return ""
	}
	name = filepath.Base(name)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}
