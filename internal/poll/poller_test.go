package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"internship-engine/internal/config"
	"internship-engine/internal/pipeline"
)

type stubRunner struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	err     error
	added   int
}

func (s *stubRunner) Run(ctx context.Context, _ config.Config, _ pipeline.Options) (pipeline.Report, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return pipeline.Report{State: pipeline.Failed}, s.err
	}
	return pipeline.Report{State: pipeline.Done, New: s.added}, nil
}

func newPoller(r Runner) *Poller {
	cfg := config.Default()
	return &Poller{Runner: r, Config: func() config.Config { return cfg }}
}

func TestRunNowUpdatesStatus(t *testing.T) {
	p := newPoller(&stubRunner{added: 3})
	if _, err := p.RunNow(context.Background(), pipeline.Options{}); err != nil {
		t.Fatal(err)
	}
	st := p.Status()
	if st.Running || st.LastAdded != 3 || st.LastOkAt == "" || st.LastError != "" {
		t.Errorf("status = %+v", st)
	}
	if st.LastReport == nil || st.LastReport.New != 3 {
		t.Errorf("LastReport = %+v", st.LastReport)
	}
}

func TestRunNowRecordsError(t *testing.T) {
	p := newPoller(&stubRunner{err: errors.New("login refused")})
	if _, err := p.RunNow(context.Background(), pipeline.Options{}); err == nil {
		t.Fatal("expected error")
	}
	if st := p.Status(); st.LastError != "login refused" || st.LastOkAt != "" {
		t.Errorf("status = %+v", st)
	}
}

func TestTriggerRejectsOverlap(t *testing.T) {
	r := &stubRunner{release: make(chan struct{})}
	p := newPoller(r)

	st, started := p.Trigger(context.Background())
	if !started || !st.Running {
		t.Fatalf("first Trigger started=%v status=%+v", started, st)
	}
	if _, started := p.Trigger(context.Background()); started {
		t.Error("second Trigger started while the first was running")
	}
	if _, err := p.RunNow(context.Background(), pipeline.Options{}); !errors.Is(err, ErrBusy) {
		t.Errorf("RunNow err = %v, want ErrBusy", err)
	}

	close(r.release)
	p.Wait()
	if p.Status().Running {
		t.Error("still running after Wait")
	}
	if r.calls != 1 {
		t.Errorf("runner calls = %d, want 1", r.calls)
	}
}

func TestLoopSkipsWhenDisabled(t *testing.T) {
	r := &stubRunner{}
	cfg := config.Default()
	cfg.Email.Enabled = false
	cfg.Polling.EmailSeconds = 1
	p := &Poller{Runner: r, Config: func() config.Config { return cfg }}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	p.Loop(ctx)
	if r.calls != 0 {
		t.Errorf("runner called %d times with email disabled", r.calls)
	}
}
