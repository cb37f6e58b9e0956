// Package message turns raw RFC 5322 bytes into the fields the intake pipeline needs.
package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"

	gomessage "github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"internship-engine/internal/domain"
)

type Status int

const (
	StatusParsed Status = iota
	StatusDegraded
)

func (s Status) String() string {
	if s == StatusDegraded {
		return "degraded"
	}
	return "parsed"
}

// Attachment is one part marked Content-Disposition: attachment.
// An empty Filename or nil Data means the part carried none.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	MessageID   string
	Subject     string
	Sender      string
	Date        time.Time
	Body        string
	HTML        string
	Attachments []Attachment

	Status Status
	// Err is why parsing degraded.
	Err error
}

// Parse never fails; a message it cannot read comes back degraded with sentinel fields.
func Parse(raw []byte) (msg Message) {
	defer func() {
		if rec := recover(); rec != nil {
			msg = degraded(fmt.Errorf("panic: %v", rec))
		}
	}()

	m, err := parse(raw)
	if err != nil {
		return degraded(err)
	}
	return m
}

func degraded(err error) Message {
	return Message{
		Subject:     domain.NA,
		Sender:      domain.NA,
		Body:        domain.NA,
		Attachments: []Attachment{},
		Status:      StatusDegraded,
		Err:         err,
	}
}

func parse(raw []byte) (Message, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Message{}, errors.New("empty message")
	}

	e, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) && !gomessage.IsUnknownEncoding(err) {
		return Message{}, fmt.Errorf("read entity: %w", err)
	}

	h := mail.Header{Header: e.Header}
	out := Message{
		MessageID:   strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>"),
		Subject:     decodeHeader(h, "Subject"),
		Sender:      decodeHeader(h, "From"),
		Attachments: []Attachment{},
	}
	if d, err := h.Date(); err == nil {
		out.Date = d
	}

	if e.MultipartReader() == nil {
		b, err := readAll(e.Body)
		if err != nil {
			return Message{}, fmt.Errorf("read body: %w", err)
		}
		out.Body = b
		return out, nil
	}

	mr := mail.NewReader(e)
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !gomessage.IsUnknownCharset(err) && !gomessage.IsUnknownEncoding(err) {
			return Message{}, fmt.Errorf("next part: %w", err)
		}
		if p == nil {
			continue
		}

		switch ph := p.Header.(type) {
		case *mail.AttachmentHeader:
			att := Attachment{}
			att.Filename, _ = ph.Filename()
			att.ContentType, _, _ = ph.ContentType()
			if b, err := io.ReadAll(p.Body); err == nil && len(b) > 0 {
				att.Data = b
			}
			out.Attachments = append(out.Attachments, att)

		case *mail.InlineHeader:
			ct, _, _ := ph.ContentType()
			if ct == "" {
				ct = "text/plain"
			}
			switch ct {
			case "text/plain":
				b, err := readAll(p.Body)
				if err != nil {
					return Message{}, fmt.Errorf("read text part: %w", err)
				}
				// a later non-empty plain part replaces an earlier one
				if b != "" {
					out.Body = b
				}
			case "text/html":
				b, err := readAll(p.Body)
				if err == nil && b != "" {
					out.HTML = b
				}
			default:
				_, _ = io.Copy(io.Discard, p.Body)
			}
		}
	}
	return out, nil
}

// decodeHeader returns the RFC 2047-decoded value of key, or the raw value
// with invalid UTF-8 replaced when decoding fails.
func decodeHeader(h mail.Header, key string) string {
	v, err := h.Text(key)
	if err != nil {
		raw := h.Get(key)
		dec := new(mime.WordDecoder)
		if s, err := dec.DecodeHeader(raw); err == nil {
			raw = s
		}
		v = raw
	}
	return strings.TrimSpace(strings.ToValidUTF8(v, "�"))
}

func readAll(r io.Reader) (string, error) {
	if r == nil {
		return "", nil
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(b), "�"), nil
}
