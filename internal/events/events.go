// Package events fans engine notifications out to SSE subscribers.
package events

import (
	"encoding/json"
	"time"
)

const (
	CandidateCreated  = "candidate_created"
	CandidateReviewed = "candidate_reviewed"
	RunStarted        = "run_started"
	RunFinished       = "run_finished"
	ConfigUpdated     = "config_updated"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MakeEvent encodes an event as the JSON line sent in an SSE data field.
func MakeEvent(reqID, typ string, v int, data any) string {
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
	}
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			e.Data = b
		}
	}
	b, _ := json.Marshal(e)
	return string(b)
}
