package pipeline

import (
	"time"

	"internship-engine/internal/domain"
)

type Failure struct {
	MessageID string `json:"messageId"`
	Stage     State  `json:"stage"`
	Cause     string `json:"cause"`
}

// Report is what one run did. Processed counts messages that were fetched;
// New and Duplicates split the ones that reached the candidate sink.
type Report struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	State      State     `json:"state"`
	DryRun     bool      `json:"dryRun,omitempty"`

	Found      int       `json:"found"`
	Processed  int       `json:"processed"`
	New        int       `json:"new"`
	Duplicates int       `json:"duplicates"`
	Failures   []Failure `json:"failures"`

	// Error is the run-level cause when State is Failed.
	Error string `json:"error,omitempty"`

	// Candidates holds the extracted records of a dry run.
	Candidates []domain.Candidate `json:"candidates,omitempty"`
}

func (r *Report) fail(se *StageError) {
	r.Failures = append(r.Failures, Failure{
		MessageID: se.MessageID,
		Stage:     se.Stage,
		Cause:     se.Err.Error(),
	})
}

func (r Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
