package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

const defaultTimeout = 30 * time.Second

// IMAPDialer opens implicit-TLS sessions.
type IMAPDialer struct {
	Log *slog.Logger
}

func (d IMAPDialer) Dial(ctx context.Context, s Settings) (Session, error) {
	log := d.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if s.Timeout <= 0 {
		s.Timeout = defaultTimeout
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))

	tlsCfg := s.TLSConfig
	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: s.Host}
	}

	dctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()
	td := &tls.Dialer{NetDialer: &net.Dialer{Timeout: s.Timeout}, Config: tlsCfg}
	conn, err := td.DialContext(dctx, "tcp", addr)
	if err != nil {
		err = &ConnectionError{Op: "dial", Addr: addr, Err: err}
		log.Error("imap connect failed", "addr", addr, "err", err)
		return nil, err
	}

	sess := &imapSession{
		c:       imapclient.New(conn, nil),
		addr:    addr,
		timeout: s.Timeout,
		log:     log,
	}

	if err := sess.wait(ctx, func() error {
		return sess.c.Login(s.Username, s.Password).Wait()
	}); err != nil {
		sess.kill()
		if isServerError(err) {
			err = &AuthError{User: s.Username, Err: err}
		} else {
			err = &ConnectionError{Op: "login", Addr: addr, Err: err}
		}
		log.Error("imap login failed", "addr", addr, "user", s.Username, "err", err)
		return nil, err
	}

	folder := s.Folder
	if folder == "" {
		folder = "INBOX"
	}
	if err := sess.wait(ctx, func() error {
		_, err := sess.c.Select(folder, &imap.SelectOptions{ReadOnly: false}).Wait()
		return err
	}); err != nil {
		sess.kill()
		err = &ConnectionError{Op: "select " + folder, Addr: addr, Err: err}
		log.Error("imap select failed", "addr", addr, "folder", folder, "err", err)
		return nil, err
	}

	log.Debug("imap session ready", "addr", addr, "folder", folder)
	return sess, nil
}

type imapSession struct {
	c       *imapclient.Client
	addr    string
	timeout time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	closed bool
}

// wait runs fn bounded by the session timeout. When the deadline passes the
// connection is closed, which makes fn return; the session is unusable after.
func (s *imapSession) wait(ctx context.Context, fn func() error) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		s.kill()
		<-done
		return fmt.Errorf("imap %s: %w", s.addr, ctx.Err())
	}
}

func (s *imapSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *imapSession) kill() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	_ = s.c.Close()
}

func (s *imapSession) Search(ctx context.Context, criteria string) ([]MessageID, error) {
	crit, err := ParseCriteria(criteria)
	if err != nil {
		return nil, err
	}

	var data *imap.SearchData
	err = s.wait(ctx, func() error {
		var err error
		data, err = s.c.UIDSearch(crit, nil).Wait()
		return err
	})
	if err != nil {
		if isServerError(err) {
			s.log.Warn("imap search refused; treating as no messages", "criteria", criteria, "err", err)
			return []MessageID{}, nil
		}
		return nil, &ConnectionError{Op: "search", Addr: s.addr, Err: err}
	}

	uids := data.AllUIDs()
	out := make([]MessageID, 0, len(uids))
	for _, uid := range uids {
		out = append(out, MessageID(uid))
	}
	return out, nil
}

func (s *imapSession) FetchRaw(ctx context.Context, id MessageID) ([]byte, error) {
	bodyAll := &imap.FetchItemBodySection{
		Specifier: imap.PartSpecifierNone,
		Peek:      true,
	}
	opts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodyAll},
	}

	var raw []byte
	err := s.wait(ctx, func() error {
		msgs, err := s.c.Fetch(imap.UIDSetNum(imap.UID(id)), opts).Collect()
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return fmt.Errorf("uid %s: no such message", id)
		}
		raw = msgs[0].FindBodySection(bodyAll)
		if raw == nil {
			return fmt.Errorf("uid %s: server returned no body", id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	return raw, nil
}

func (s *imapSession) MarkRead(ctx context.Context, id MessageID) {
	storeFlags := &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}
	err := s.wait(ctx, func() error {
		return s.c.Store(imap.UIDSetNum(imap.UID(id)), storeFlags, nil).Close()
	})
	if err != nil {
		s.log.Warn("imap mark read failed; message may be processed again", "uid", id.String(), "err", err)
	}
}

// Close logs out then closes the connection.
func (s *imapSession) Close() error {
	if s.isClosed() {
		return nil
	}
	err := s.wait(context.Background(), func() error {
		return s.c.Logout().Wait()
	})
	if err != nil {
		s.log.Debug("imap logout", "err", err)
	}
	s.kill()
	return nil
}

// isServerError reports a tagged NO or BAD response.
func isServerError(err error) bool {
	var ie *imap.Error
	return errors.As(err, &ie)
}
