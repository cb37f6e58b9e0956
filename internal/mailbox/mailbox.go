// Package mailbox talks to the applications inbox over IMAP.
package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// MessageID is a UID, valid within the session that returned it.
type MessageID uint32

func (id MessageID) String() string { return strconv.FormatUint(uint64(id), 10) }

type Settings struct {
	Host     string
	Port     int
	Username string
	Password string
	Folder   string
	// Timeout bounds each network command.
	Timeout time.Duration
	// TLSConfig overrides the default (TLS 1.2+, ServerName=Host).
	TLSConfig *tls.Config
}

// Session is one logged-in connection with Folder selected. It is not safe
// for concurrent use; IMAP commands on a connection are issued one at a time.
type Session interface {
	// Search returns the ids matching criteria. A NO/BAD answer from the
	// server gives an empty result and no error; a timeout or broken
	// connection is returned.
	Search(ctx context.Context, criteria string) ([]MessageID, error)
	// FetchRaw returns the complete message without setting \Seen.
	FetchRaw(ctx context.Context, id MessageID) ([]byte, error)
	// MarkRead sets \Seen. Failures are logged, not returned.
	MarkRead(ctx context.Context, id MessageID)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, s Settings) (Session, error)
}

// AuthError means the server rejected the credentials.
type AuthError struct {
	User string
	Err  error
}

func (e *AuthError) Error() string { return fmt.Sprintf("imap login as %s: %v", e.User, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// ConnectionError covers dial, TLS, select and transport failures.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("imap %s %s: %v", e.Op, e.Addr, e.Err)
}
func (e *ConnectionError) Unwrap() error { return e.Err }

var ErrSessionClosed = errors.New("imap session closed")

func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
