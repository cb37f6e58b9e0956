package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"internship-engine/internal/config"
)

const (
	// “Service” groups the app’s secrets in the OS keychain.
	KeyringService = "internship-engine"

	// PasswordEnv overrides whatever the store holds.
	PasswordEnv = "INTERNSHIP_IMAP_PASSWORD"
)

var ErrNotFound = errors.New("secret not found")

// Store holds IMAP passwords by account id.
type Store interface {
	GetPassword(account string) (string, error)
	SetPassword(account, password string) error
	DeletePassword(account string) error
}

// Keyring keeps passwords in the OS keychain.
type Keyring struct{}

func (Keyring) GetPassword(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	pw, err := keyring.Get(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return pw, nil
}

func (Keyring) SetPassword(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, account, password)
}

func (Keyring) DeletePassword(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	err := keyring.Delete(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// Env returns the password from PasswordEnv when set, else asks Next.
type Env struct {
	Next Store
}

func (e Env) GetPassword(account string) (string, error) {
	if pw := os.Getenv(PasswordEnv); strings.TrimSpace(pw) != "" {
		return pw, nil
	}
	if e.Next == nil {
		return "", ErrNotFound
	}
	return e.Next.GetPassword(account)
}

func (e Env) SetPassword(account, password string) error {
	if e.Next == nil {
		return errors.New("no secret store configured")
	}
	return e.Next.SetPassword(account, password)
}

func (e Env) DeletePassword(account string) error {
	if e.Next == nil {
		return nil
	}
	return e.Next.DeletePassword(account)
}

// IMAPAccount is the account id the IMAP password is stored under.
func IMAPAccount(cfg config.Config) string {
	return fmt.Sprintf(
		"imap:%s@%s",
		cfg.Email.Username,
		cfg.Email.IMAPHost,
	)
}

// Open builds the store selected by cfg.Secrets, wrapped with the env override.
func Open(cfg config.Config) (Store, error) {
	switch cfg.Secrets.Backend {
	case "", "keyring":
		return Env{Next: Keyring{}}, nil
	case "file":
		key, err := KeyFromEnv()
		if err != nil {
			return nil, err
		}
		return Env{Next: NewFileStore(cfg.Resolve(cfg.Secrets.FilePath), key)}, nil
	default:
		return nil, &config.ConfigError{Field: "secrets.backend", Reason: fmt.Sprintf("%q is not supported", cfg.Secrets.Backend)}
	}
}
