package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestShutdownHandlerGuards(t *testing.T) {
	srv := &http.Server{}
	h := shutdownHandler("tok", srv)

	tests := []struct {
		name   string
		method string
		remote string
		token  string
		want   int
	}{
		{"wrong method", http.MethodGet, "127.0.0.1:1", "tok", http.StatusMethodNotAllowed},
		{"remote caller", http.MethodPost, "10.0.0.2:1", "tok", http.StatusForbidden},
		{"missing token", http.MethodPost, "127.0.0.1:1", "", http.StatusUnauthorized},
		{"bad token", http.MethodPost, "127.0.0.1:1", "nope", http.StatusUnauthorized},
		{"ok", http.MethodPost, "127.0.0.1:1", "tok", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/shutdown", nil)
			r.RemoteAddr = tt.remote
			if tt.token != "" {
				r.Header.Set("X-Shutdown-Token", tt.token)
			}
			w := httptest.NewRecorder()
			h(w, r)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestLoadConfigBootstrapsDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	codes := "internship_code_map:\n  DS: Data Science Intern\n"
	if err := os.WriteFile(filepath.Join(dir, "codes.yml"), []byte(codes), 0o600); err != nil {
		t.Fatal(err)
	}

	path, cfg, err := loadConfig(&Globals{DataDir: dir, LogLevel: "debug"})
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "config.yml") {
		t.Errorf("path = %q", path)
	}
	if cfg.App.DataDir != dir || cfg.Logging.Level != "debug" {
		t.Errorf("data dir = %q level = %q", cfg.App.DataDir, cfg.Logging.Level)
	}
	if cfg.Intake.CodeMap["DS"] != "Data Science Intern" || cfg.Intake.CodeMap["PY"] != "Python Developer" {
		t.Errorf("code map = %v", cfg.Intake.CodeMap)
	}
}

func TestRandomToken(t *testing.T) {
	a, err := randomToken(16)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := randomToken(16)
	if len(a) != 32 || a == b {
		t.Errorf("tokens %q %q", a, b)
	}
}
