package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy of cfg and what is wrong with it.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.Email.IMAPHost = strings.TrimSpace(out.Email.IMAPHost)
	out.Email.Username = strings.TrimSpace(out.Email.Username)
	out.Email.Mailbox = strings.TrimSpace(out.Email.Mailbox)
	out.Email.SearchCriteria = strings.TrimSpace(out.Email.SearchCriteria)
	out.Storage.Backend = strings.ToLower(strings.TrimSpace(out.Storage.Backend))

	if out.Email.Mailbox == "" {
		out.Email.Mailbox = "INBOX"
	}
	if out.Email.SearchCriteria == "" {
		out.Email.SearchCriteria = "UNSEEN"
	}
	if out.Storage.Backend == "" {
		out.Storage.Backend = "sqlite"
	}

	// Codes are matched as written in the subject; trim keys and drop blanks.
	if len(out.Intake.CodeMap) > 0 {
		m := make(map[string]string, len(out.Intake.CodeMap))
		for k, v := range out.Intake.CodeMap {
			k = strings.TrimSpace(k)
			v = strings.TrimSpace(v)
			if k == "" {
				res.addWarn("intake.internship_code_map has an empty code; ignored")
				continue
			}
			if v == "" {
				res.addWarn("intake.internship_code_map[%q] has an empty label; the raw code will be shown", k)
			}
			m[k] = v
		}
		out.Intake.CodeMap = m
	}

	// ---- Validation rules ----

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	if out.Polling.EmailSeconds <= 0 {
		res.addErr("polling.email_seconds must be > 0")
	} else if out.Polling.EmailSeconds < 30 {
		res.addWarn("polling.email_seconds is very low (%d) and may get the account throttled.", out.Polling.EmailSeconds)
	}

	// password is not checked here; it lives in the secret store
	if out.Email.Enabled {
		if out.Email.IMAPHost == "" {
			res.addErr("email.imap_host is required when email.enabled=true")
		}
		if out.Email.IMAPPort <= 0 || out.Email.IMAPPort > 65535 {
			res.addErr("email.imap_port must be 1..65535")
		} else if out.Email.IMAPPort == 143 {
			res.addWarn("email.imap_port 143 is usually plaintext IMAP; the engine only speaks implicit TLS")
		}
		if out.Email.Username == "" {
			res.addErr("email.username is required when email.enabled=true")
		}
	}
	if out.Email.TimeoutSeconds <= 0 {
		res.addErr("email.timeout_seconds must be > 0")
	}
	if out.Email.FetchPerSecond < 0 {
		res.addErr("email.fetch_per_second must be >= 0")
	}
	if out.Email.MaxMessages < 0 {
		res.addErr("email.max_messages must be >= 0")
	}

	switch out.Storage.Backend {
	case "csv":
		if strings.TrimSpace(out.Storage.CSVPath) == "" {
			res.addErr("storage.csv_path is required for the csv backend")
		}
	case "sqlite":
		if strings.TrimSpace(out.Storage.SQLitePath) == "" {
			res.addErr("storage.sqlite_path is required for the sqlite backend")
		}
	case "postgres":
		if strings.TrimSpace(out.Storage.PostgresURL) == "" {
			res.addErr("storage.postgres_url is required for the postgres backend")
		}
	default:
		res.addErr("storage.backend must be csv, sqlite or postgres (got %q)", out.Storage.Backend)
	}
	if strings.TrimSpace(out.Storage.AttachmentDir) == "" {
		res.addErr("storage.attachment_dir is required")
	}

	if out.Dedup.RedisURL != "" && out.Dedup.TTLHours <= 0 {
		res.addErr("dedup.ttl_hours must be > 0 when dedup.redis_url is set")
	}

	switch out.Secrets.Backend {
	case "", "keyring":
	case "file":
		if strings.TrimSpace(out.Secrets.FilePath) == "" {
			res.addErr("secrets.file_path is required for the file backend")
		}
	default:
		res.addErr("secrets.backend must be keyring or file (got %q)", out.Secrets.Backend)
	}

	return out, res
}

// Resolve joins a relative path onto the data dir.
func (c Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.App.DataDir, p)
}
