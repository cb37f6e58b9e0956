// Package extract pulls candidate fields out of an application email with fixed patterns.
package extract

import (
	"log/slog"
	"net/mail"
	"regexp"
	"strings"

	"internship-engine/internal/domain"
)

var (
	reName     = regexp.MustCompile(`(?i)Name[:\s]+(.+)`)
	rePhone    = regexp.MustCompile(`(?i)Phone[:\s]+(\+?[\d \-()]+)`)
	reLinkedIn = regexp.MustCompile(`(?i)(https?://www\.linkedin\.com/in/[^\s]+)`)
	// bare path after a label, with or without scheme
	reLinkedInLabel = regexp.MustCompile(`(?i)LinkedIn[:\s]+((?:https?://)?(?:www\.)?linkedin\.com/in/[\w\-]+/?)`)
	reGitHub        = regexp.MustCompile(`(?i)(https?://(?:www\.)?github\.com/[\w\-]+)`)
	reGitHubLabel   = regexp.MustCompile(`(?i)GitHub[:\s]+((?:www\.)?github\.com/[\w\-]+)`)
	reCode          = regexp.MustCompile(`(?i)Internship Code[:\s]+(\w+)`)
	reSubject       = regexp.MustCompile(`(?i)Internship Application\s*[–-]\s*(\w+)(?:\s*[–-]\s*(.+))?`)
)

type Input struct {
	Body    string
	Sender  string
	Subject string
	CodeMap map[string]string
}

// Extractor is safe for concurrent use.
type Extractor struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Extractor{log: log}
}

// Extract never fails: fields it cannot find are domain.NA, and a panic while
// matching degrades to the empty-body record.
func (x *Extractor) Extract(in Input) (c domain.Candidate) {
	addr, display := SplitSender(in.Sender)

	defer func() {
		if rec := recover(); rec != nil {
			x.log.Error("extraction failed; using fallback record", "sender", in.Sender, "panic", rec)
			c = domain.Fallback(addr)
		}
	}()

	subjCode, subjName := parseSubject(in.Subject)

	if strings.TrimSpace(in.Body) == "" {
		c = domain.Fallback(addr)
		if subjCode != "" {
			c.Internship = Resolve(subjCode, in.CodeMap)
		}
		return c
	}

	c = domain.Fallback(addr)
	c.Name = first(reName, in.Body)
	c.Phone = first(rePhone, in.Body)
	c.LinkedIn = firstOf(in.Body, reLinkedIn, reLinkedInLabel)
	c.GitHub = firstOf(in.Body, reGitHub, reGitHubLabel)

	code := first(reCode, in.Body)
	if subjCode != "" {
		code = subjCode
	}
	c.Internship = Resolve(code, in.CodeMap)

	if c.Name == domain.NA {
		switch {
		case subjName != "":
			c.Name = subjName
		case display != "":
			c.Name = display
		case addr != "":
			if at := strings.IndexByte(addr, '@'); at > 0 {
				c.Name = addr[:at]
			}
		}
	}
	return c
}

// Resolve maps a code to its label. An unknown code is returned as is; no code is NA.
func Resolve(code string, codeMap map[string]string) string {
	code = strings.TrimSpace(code)
	if code == "" || code == domain.NA {
		return domain.NA
	}
	if label, ok := codeMap[code]; ok && label != "" {
		return label
	}
	return code
}

// SplitSender reduces `"Display Name" <addr@x>` to its address and display name.
func SplitSender(sender string) (addr, display string) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return "", ""
	}
	if a, err := mail.ParseAddress(sender); err == nil {
		return a.Address, strings.TrimSpace(a.Name)
	}
	// tolerate senders net/mail rejects, e.g. unquoted specials in the name
	if lt := strings.LastIndexByte(sender, '<'); lt >= 0 {
		if gt := strings.IndexByte(sender[lt:], '>'); gt > 0 {
			addr = strings.TrimSpace(sender[lt+1 : lt+gt])
			display = strings.Trim(strings.TrimSpace(sender[:lt]), `"'`)
			return addr, display
		}
	}
	return sender, ""
}

func parseSubject(subject string) (code, name string) {
	m := reSubject.FindStringSubmatch(subject)
	if m == nil {
		return "", ""
	}
	return m[1], strings.TrimSpace(m[2])
}

func first(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return domain.NA
	}
	v := strings.TrimSpace(m[1])
	if v == "" {
		return domain.NA
	}
	return v
}

func firstOf(s string, res ...*regexp.Regexp) string {
	for _, re := range res {
		if v := first(re, s); v != domain.NA {
			return v
		}
	}
	return domain.NA
}
