package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/zalando/go-keyring"

	"internship-engine/internal/config"
	"internship-engine/internal/domain"
	"internship-engine/internal/events"
	"internship-engine/internal/logging"
	"internship-engine/internal/pipeline"
	"internship-engine/internal/poll"
	"internship-engine/internal/secrets"
	"internship-engine/internal/store"
)

type stubRunner struct{}

func (stubRunner) Run(context.Context, config.Config, pipeline.Options) (pipeline.Report, error) {
	return pipeline.Report{State: pipeline.Done, New: 1}, nil
}

type fixture struct {
	dir    string
	sink   store.Sink
	cfgVal *atomic.Value
	poller *poll.Poller
	srv    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	keyring.MockInit()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.App.DataDir = dir
	cfg.Email.Username = "hr@x.com"
	cfg.Storage.Backend = "csv"

	cfgPath := filepath.Join(dir, "config.yml")
	if err := config.SaveAtomic(cfgPath, cfg); err != nil {
		t.Fatal(err)
	}
	var cfgVal atomic.Value
	cfgVal.Store(cfg)

	log := logging.Discard()
	sink := store.NewCSVSink(cfg.Resolve(cfg.Storage.CSVPath), log)
	poller := &poll.Poller{
		Runner: stubRunner{},
		Config: func() config.Config { return cfgVal.Load().(config.Config) },
	}

	h := Handler(Deps{
		Sink:        sink,
		Hub:         events.NewHub(),
		Poller:      poller,
		CfgVal:      &cfgVal,
		UserCfgPath: cfgPath,
		LoadCfg:     func() (config.Config, error) { return config.Load(cfgPath) },
		Secrets:     func(config.Config) (secrets.Store, error) { return secrets.Keyring{}, nil },
		Log:         log,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &fixture{dir: dir, sink: sink, cfgVal: &cfgVal, poller: poller, srv: srv}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) seed(t *testing.T, emails ...string) {
	t.Helper()
	for _, e := range emails {
		c := domain.Fallback(e)
		c.Name = strings.Split(e, "@")[0]
		if _, err := f.sink.Append(context.Background(), c); err != nil {
			t.Fatal(err)
		}
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	body := decode[map[string]any](t, resp)
	if body["ok"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestCandidatesListGetAndReview(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "jane@x.com", "bob@y.org")

	list := decode[[]domain.Candidate](t, f.do(t, http.MethodGet, "/candidates", ""))
	if len(list) != 2 {
		t.Fatalf("list = %d, want 2", len(list))
	}

	resp := f.do(t, http.MethodGet, "/candidates/jane@x.com", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	if c := decode[domain.Candidate](t, resp); c.Name != "jane" {
		t.Errorf("name = %q, want jane", c.Name)
	}

	resp = f.do(t, http.MethodPut, "/candidates/jane@x.com/reviewed", `{"reviewed":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d", resp.StatusCode)
	}

	reviewed := decode[[]domain.Candidate](t, f.do(t, http.MethodGet, "/candidates?reviewed=true", ""))
	if len(reviewed) != 1 || reviewed[0].Email != "jane@x.com" {
		t.Errorf("reviewed = %+v", reviewed)
	}
	pending := decode[[]domain.Candidate](t, f.do(t, http.MethodGet, "/candidates?reviewed=false", ""))
	if len(pending) != 1 || pending[0].Email != "bob@y.org" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestCandidateWithSlashInEmail(t *testing.T) {
	f := newFixture(t)
	f.seed(t, domain.NA, "jane@x.com")

	resp := f.do(t, http.MethodGet, "/candidates/N%2FA", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	if c := decode[domain.Candidate](t, resp); c.Email != domain.NA {
		t.Errorf("email = %q, want %q", c.Email, domain.NA)
	}

	resp = f.do(t, http.MethodPut, "/candidates/N%2FA/reviewed", `{"reviewed":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d, want 200", resp.StatusCode)
	}
	c, err := f.sink.Get(context.Background(), domain.NA)
	if err != nil || !c.Reviewed {
		t.Errorf("N/A candidate reviewed = %v, err %v", c.Reviewed, err)
	}

	// the unescaped form still splits on the slash
	if resp := f.do(t, http.MethodGet, "/candidates/N/A", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unescaped get status = %d, want 400", resp.StatusCode)
	}
}

func TestCandidatesErrors(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "jane@x.com")

	tests := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodGet, "/candidates/nobody@x.com", "", http.StatusNotFound},
		{http.MethodGet, "/candidates?reviewed=maybe", "", http.StatusBadRequest},
		{http.MethodPut, "/candidates/jane@x.com/reviewed", `{}`, http.StatusBadRequest},
		{http.MethodPut, "/candidates/jane@x.com/other", `{"reviewed":true}`, http.StatusBadRequest},
		{http.MethodPut, "/candidates/nobody@x.com/reviewed", `{"reviewed":true}`, http.StatusNotFound},
		{http.MethodDelete, "/candidates/jane@x.com", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		resp := f.do(t, tt.method, tt.path, tt.body)
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
			continue
		}
		e := decode[APIError](t, resp)
		if e.Error.Code == "" || e.Error.RequestID == "" {
			t.Errorf("%s %s error envelope = %+v", tt.method, tt.path, e)
		}
	}
}

func TestAttachments(t *testing.T) {
	f := newFixture(t)
	cfg := f.cfgVal.Load().(config.Config)
	dir := cfg.Resolve(cfg.Storage.AttachmentDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cv.pdf"), []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := f.do(t, http.MethodGet, "/attachments/cv.pdf", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "cv.pdf") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if resp := f.do(t, http.MethodGet, "/attachments/missing.pdf", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodGet, "/attachments/..%2fconfig.yml", ""); resp.StatusCode == http.StatusOK {
		t.Error("served a file outside the attachment dir")
	}
}

func TestScrapeRunAndStatus(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/scrape/run", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("run status = %d, want 202", resp.StatusCode)
	}
	f.poller.Wait()

	st := decode[poll.Status](t, f.do(t, http.MethodGet, "/scrape/status", ""))
	if st.Running || st.LastAdded != 1 || st.LastOkAt == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestConfigGetPutValidate(t *testing.T) {
	f := newFixture(t)

	cfg := decode[config.Config](t, f.do(t, http.MethodGet, "/config", ""))
	cfg.Intake.CodeMap["DS"] = "Data Science Intern"
	b, _ := json.Marshal(cfg)

	resp := f.do(t, http.MethodPut, "/config", string(b))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d", resp.StatusCode)
	}
	if got := f.cfgVal.Load().(config.Config).Intake.CodeMap["DS"]; got != "Data Science Intern" {
		t.Errorf("code map DS = %q after PUT", got)
	}

	cfg.App.Port = 0
	b, _ = json.Marshal(cfg)
	resp = f.do(t, http.MethodPut, "/config", string(b))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid put status = %d", resp.StatusCode)
	}
	if v := decode[config.Validation](t, resp); len(v.Errors) == 0 {
		t.Error("invalid put returned no validation errors")
	}

	if resp := f.do(t, http.MethodPut, "/config", `{"nope":1}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown field status = %d", resp.StatusCode)
	}

	v := decode[config.Validation](t, f.do(t, http.MethodGet, "/config/validate", ""))
	if !v.OK() {
		t.Errorf("validate = %+v", v)
	}
	p := decode[map[string]string](t, f.do(t, http.MethodGet, "/config/path", ""))
	if !strings.HasSuffix(p["path"], "config.yml") {
		t.Errorf("path = %q", p["path"])
	}
}

func TestSecretsIMAP(t *testing.T) {
	f := newFixture(t)
	cfg := f.cfgVal.Load().(config.Config)

	if resp := f.do(t, http.MethodPost, "/api/secrets/imap", `{"password":""}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty password status = %d", resp.StatusCode)
	}
	if resp := f.do(t, http.MethodPost, "/api/secrets/imap", `{"password":"s3cret"}`); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("set status = %d", resp.StatusCode)
	}
	got, err := secrets.Keyring{}.GetPassword(secrets.IMAPAccount(cfg))
	if err != nil || got != "s3cret" {
		t.Errorf("stored password = %q, %v", got, err)
	}

	if resp := f.do(t, http.MethodDelete, "/api/secrets/imap", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if _, err := (secrets.Keyring{}).GetPassword(secrets.IMAPAccount(cfg)); err != secrets.ErrNotFound {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:5000", true},
		{"[::1]:5000", true},
		{"192.168.1.10:5000", false},
		{"localhost", true},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.addr
		if got := IsLoopback(r); got != tt.want {
			t.Errorf("IsLoopback(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestCorsPreflight(t *testing.T) {
	f := newFixture(t)
	req, _ := http.NewRequest(http.MethodOptions, f.srv.URL+"/candidates", nil)
	req.Header.Set("Origin", "tauri://localhost")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "tauri://localhost" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestRecoverWritesEnvelope(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("kaboom") }),
		RequestID, Recover(logging.Discard()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var e APIError
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil || e.Error.Code != "internal_error" {
		t.Errorf("envelope = %+v, %v", e, err)
	}
}
