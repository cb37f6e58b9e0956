package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeyEnv holds the hex-encoded 32-byte key for FileStore.
const KeyEnv = "INTERNSHIP_SECRET_KEY"

const nonceSize = 24

// FileStore keeps passwords encrypted with secretbox in a JSON file.
type FileStore struct {
	path string
	key  [32]byte
	mu   sync.Mutex
}

func NewFileStore(path string, key [32]byte) *FileStore {
	return &FileStore{path: path, key: key}
}

func KeyFromEnv() ([32]byte, error) {
	var key [32]byte
	raw := strings.TrimSpace(os.Getenv(KeyEnv))
	if raw == "" {
		return key, fmt.Errorf("%s is not set", KeyEnv)
	}
	b, err := hex.DecodeString(raw)
	if err != nil || len(b) != len(key) {
		return key, fmt.Errorf("%s must be %d hex-encoded bytes", KeyEnv, len(key))
	}
	copy(key[:], b)
	return key, nil
}

func (s *FileStore) GetPassword(account string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.read()
	if err != nil {
		return "", err
	}
	enc, ok := m[account]
	if !ok {
		return "", ErrNotFound
	}
	box, err := base64.StdEncoding.DecodeString(enc)
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("secret for %q is corrupt", account)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", fmt.Errorf("secret for %q cannot be decrypted with this key", account)
	}
	return string(plain), nil
}

func (s *FileStore) SetPassword(account, password string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return err
	}
	box := secretbox.Seal(nonce[:], []byte(password), &nonce, &s.key)

	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		return err
	}
	m[account] = base64.StdEncoding.EncodeToString(box)
	return s.write(m)
}

func (s *FileStore) DeletePassword(account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := m[account]; !ok {
		return nil
	}
	delete(m, account)
	return s.write(m)
}

func (s *FileStore) read() (map[string]string, error) {
	m := map[string]string{}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return m, nil
}

func (s *FileStore) write(m map[string]string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
