package pipeline

import "fmt"

// State is where a run, or the message it is working on, currently is.
type State int

const (
	Idle State = iota
	Connected
	Listing
	Fetching
	Parsing
	Extracting
	SavingAttachments
	Persisting
	MarkingRead
	Done
	Failed
)

var stateNames = [...]string{
	Idle:              "idle",
	Connected:         "connected",
	Listing:           "listing",
	Fetching:          "fetching",
	Parsing:           "parsing",
	Extracting:        "extracting",
	SavingAttachments: "saving-attachments",
	Persisting:        "persisting",
	MarkingRead:       "marking-read",
	Done:              "done",
	Failed:            "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StageError is a message-level failure. The run goes on to the next message.
type StageError struct {
	MessageID string
	Stage     State
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("message %s: %s: %v", e.MessageID, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
