package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the engine's counters. A nil *Recorder is valid and records nothing.
type Recorder struct {
	Runs               *prometheus.CounterVec
	Messages           *prometheus.CounterVec
	CandidatesInserted prometheus.Counter
	AttachmentFailures prometheus.Counter
	RunDuration        prometheus.Histogram
}

func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "internship_runs_total",
			Help: "Pipeline runs by result",
		}, []string{"result"}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "internship_messages_total",
			Help: "Messages handled by outcome",
		}, []string{"outcome"}),
		CandidatesInserted: f.NewCounter(prometheus.CounterOpts{
			Name: "internship_candidates_inserted_total",
			Help: "Candidates newly written to the store",
		}),
		AttachmentFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "internship_attachment_failures_total",
			Help: "Attachments that could not be written",
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "internship_run_duration_seconds",
			Help:    "Wall time of one pipeline run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
}

func (r *Recorder) Run(result string, seconds float64) {
	if r == nil {
		return
	}
	r.Runs.WithLabelValues(result).Inc()
	r.RunDuration.Observe(seconds)
}

func (r *Recorder) Message(outcome string) {
	if r == nil {
		return
	}
	r.Messages.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Inserted() {
	if r == nil {
		return
	}
	r.CandidatesInserted.Inc()
}

func (r *Recorder) AttachmentFailed(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.AttachmentFailures.Add(float64(n))
}
