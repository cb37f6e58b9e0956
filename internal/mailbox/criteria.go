package mailbox

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
)

const dateLayout = "2-Jan-2006"

// ParseCriteria turns an IMAP SEARCH key string such as `UNSEEN` or
// `(UNSEEN SUBJECT "Internship Application")` into search criteria.
// All keys are ANDed; parentheses only group.
func ParseCriteria(s string) (*imap.SearchCriteria, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("search criteria is empty")
	}

	c := &imap.SearchCriteria{}
	for i := 0; i < len(toks); i++ {
		key := strings.ToUpper(toks[i].text)
		if toks[i].quoted {
			return nil, fmt.Errorf("search criteria: unexpected string %q", toks[i].text)
		}

		arg := func() (string, error) {
			if i+1 >= len(toks) {
				return "", fmt.Errorf("search criteria: %s needs an argument", key)
			}
			i++
			return toks[i].text, nil
		}
		date := func() (time.Time, error) {
			v, err := arg()
			if err != nil {
				return time.Time{}, err
			}
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				return time.Time{}, fmt.Errorf("search criteria: %s date %q must look like 2-Jan-2006", key, v)
			}
			return t, nil
		}

		switch key {
		case "ALL":
		case "UNSEEN":
			c.NotFlag = append(c.NotFlag, imap.FlagSeen)
		case "SEEN":
			c.Flag = append(c.Flag, imap.FlagSeen)
		case "FLAGGED":
			c.Flag = append(c.Flag, imap.FlagFlagged)
		case "UNFLAGGED":
			c.NotFlag = append(c.NotFlag, imap.FlagFlagged)
		case "ANSWERED":
			c.Flag = append(c.Flag, imap.FlagAnswered)
		case "UNANSWERED":
			c.NotFlag = append(c.NotFlag, imap.FlagAnswered)
		case "SUBJECT", "FROM", "TO", "CC":
			v, err := arg()
			if err != nil {
				return nil, err
			}
			c.Header = append(c.Header, imap.SearchCriteriaHeaderField{
				Key:   strings.ToUpper(key[:1]) + strings.ToLower(key[1:]),
				Value: v,
			})
		case "BODY":
			v, err := arg()
			if err != nil {
				return nil, err
			}
			c.Body = append(c.Body, v)
		case "TEXT":
			v, err := arg()
			if err != nil {
				return nil, err
			}
			c.Text = append(c.Text, v)
		case "SINCE":
			t, err := date()
			if err != nil {
				return nil, err
			}
			c.Since = t
		case "BEFORE":
			t, err := date()
			if err != nil {
				return nil, err
			}
			c.Before = t
		default:
			return nil, fmt.Errorf("search criteria: unsupported key %q", toks[i].text)
		}
	}
	return c, nil
}

// SubjectCriteria is `(UNSEEN SUBJECT "<text>")`.
func SubjectCriteria(subject string) string {
	q := strings.ReplaceAll(subject, `\`, `\\`)
	q = strings.ReplaceAll(q, `"`, `\"`)
	return `(UNSEEN SUBJECT "` + q + `")`
}

type token struct {
	text   string
	quoted bool
}

func tokenize(s string) ([]token, error) {
	var (
		toks  []token
		depth int
	)
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			i++
		case ch == '(':
			depth++
			i++
		case ch == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("search criteria: unbalanced ')'")
			}
			i++
		case ch == '"':
			var b strings.Builder
			i++
			closed := false
			for i < len(s) {
				if s[i] == '\\' && i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				if s[i] == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("search criteria: unterminated string")
			}
			toks = append(toks, token{text: b.String(), quoted: true})
		default:
			start := i
			for i < len(s) && !strings.ContainsRune(" \t\r\n()\"", rune(s[i])) {
				i++
			}
			toks = append(toks, token{text: s[start:i]})
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("search criteria: unbalanced '('")
	}
	return toks, nil
}
