package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"internship-engine/internal/mailbox"
	"internship-engine/internal/secrets"
)

type fakeSession struct {
	mu        sync.Mutex
	msgs      map[mailbox.MessageID][]byte
	order     []mailbox.MessageID
	searchErr error
	fetchErr  map[mailbox.MessageID]error
	criteria  []string
	fetched   []mailbox.MessageID
	read      []mailbox.MessageID
	closed    bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		msgs:     map[mailbox.MessageID][]byte{},
		fetchErr: map[mailbox.MessageID]error{},
	}
}

func (s *fakeSession) add(id mailbox.MessageID, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[id] = raw
	s.order = append(s.order, id)
}

func (s *fakeSession) Search(_ context.Context, criteria string) ([]mailbox.MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = append(s.criteria, criteria)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return append([]mailbox.MessageID(nil), s.order...), nil
}

func (s *fakeSession) FetchRaw(_ context.Context, id mailbox.MessageID) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, id)
	if err := s.fetchErr[id]; err != nil {
		return nil, err
	}
	raw, ok := s.msgs[id]
	if !ok {
		return nil, fmt.Errorf("uid %s: no such message", id)
	}
	return raw, nil
}

func (s *fakeSession) MarkRead(_ context.Context, id mailbox.MessageID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.read = append(s.read, id)
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) readIDs() []mailbox.MessageID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mailbox.MessageID(nil), s.read...)
}

type fakeDialer struct {
	mu       sync.Mutex
	sess     *fakeSession
	err      error
	dials    int
	settings mailbox.Settings
}

func (d *fakeDialer) Dial(_ context.Context, s mailbox.Settings) (mailbox.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.settings = s
	if d.err != nil {
		return nil, d.err
	}
	return d.sess, nil
}

type memPasswords struct {
	mu sync.Mutex
	m  map[string]string
}

func (p *memPasswords) GetPassword(account string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pw, ok := p.m[account]
	if !ok {
		return "", secrets.ErrNotFound
	}
	return pw, nil
}

func (p *memPasswords) SetPassword(account, password string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[account] = password
	return nil
}

func (p *memPasswords) DeletePassword(account string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, account)
	return nil
}

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *memDedup) Seen(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	return d.seen[id], nil
}

func (d *memDedup) Mark(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.seen[id] = true
	return nil
}

func (d *memDedup) has(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[id]
}

type recordingHub struct {
	mu  sync.Mutex
	evs []string
}

func (h *recordingHub) Publish(evt string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.evs = append(h.evs, evt)
}

func (h *recordingHub) all() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.evs...)
}

var errBoom = errors.New("boom")
