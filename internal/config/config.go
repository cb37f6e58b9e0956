// engine/internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port    int    `yaml:"port" json:"port"`
		DataDir string `yaml:"data_dir" json:"data_dir"`
	} `yaml:"app" json:"app"`

	Logging struct {
		Level  string `yaml:"level" json:"level"`
		Format string `yaml:"format" json:"format"`
		Output string `yaml:"output" json:"output"`
	} `yaml:"logging" json:"logging"`

	Email struct {
		Enabled        bool    `yaml:"enabled" json:"enabled"`
		IMAPHost       string  `yaml:"imap_host" json:"imap_host"`
		IMAPPort       int     `yaml:"imap_port" json:"imap_port"`
		Username       string  `yaml:"username" json:"username"`
		Mailbox        string  `yaml:"mailbox" json:"mailbox"`
		SearchCriteria string  `yaml:"search_criteria" json:"search_criteria"`
		TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds"`
		FetchPerSecond float64 `yaml:"fetch_per_second" json:"fetch_per_second"`
		MaxMessages    int     `yaml:"max_messages" json:"max_messages"`
	} `yaml:"email" json:"email"`

	Storage struct {
		Backend       string `yaml:"backend" json:"backend"` // csv | sqlite | postgres
		CSVPath       string `yaml:"csv_path" json:"csv_path"`
		SQLitePath    string `yaml:"sqlite_path" json:"sqlite_path"`
		PostgresURL   string `yaml:"postgres_url" json:"postgres_url"`
		AttachmentDir string `yaml:"attachment_dir" json:"attachment_dir"`
	} `yaml:"storage" json:"storage"`

	Intake struct {
		CodeMap map[string]string `yaml:"internship_code_map" json:"internship_code_map"`
	} `yaml:"intake" json:"intake"`

	Dedup struct {
		RedisURL string `yaml:"redis_url" json:"redis_url"`
		TTLHours int    `yaml:"ttl_hours" json:"ttl_hours"`
	} `yaml:"dedup" json:"dedup"`

	Polling struct {
		EmailSeconds int `yaml:"email_seconds" json:"email_seconds"`
	} `yaml:"polling" json:"polling"`

	Secrets struct {
		Backend  string `yaml:"backend" json:"backend"` // keyring | file
		FilePath string `yaml:"file_path" json:"file_path"`
	} `yaml:"secrets" json:"secrets"`
}

// Default returns the configuration written on first start.
func Default() Config {
	var cfg Config
	cfg.App.Port = 38471
	cfg.App.DataDir = "."

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "stderr"

	cfg.Email.Enabled = true
	cfg.Email.IMAPHost = "imap.gmail.com"
	cfg.Email.IMAPPort = 993
	cfg.Email.Mailbox = "INBOX"
	cfg.Email.SearchCriteria = "UNSEEN"
	cfg.Email.TimeoutSeconds = 30
	cfg.Email.FetchPerSecond = 5
	cfg.Email.MaxMessages = 200

	cfg.Storage.Backend = "sqlite"
	cfg.Storage.CSVPath = "candidates.csv"
	cfg.Storage.SQLitePath = "candidates.db"
	cfg.Storage.AttachmentDir = "attachments"

	cfg.Intake.CodeMap = map[string]string{
		"PY": "Python Developer",
		"WD": "Web Developer",
		"GD": "Graphic Designer",
		"ML": "Machine Learning Intern",
	}

	cfg.Dedup.TTLHours = 24 * 7
	cfg.Polling.EmailSeconds = 300
	cfg.Secrets.Backend = "keyring"
	cfg.Secrets.FilePath = "secrets.json"
	return cfg
}

func Load(path string) (Config, error) {
	cfg := Default()
	// yaml.v3 merges into a non-nil map; the file's code map replaces the defaults.
	cfg.Intake.CodeMap = nil
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ConfigError reports configuration that prevents a run from starting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}
