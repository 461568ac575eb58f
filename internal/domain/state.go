package domain

import "time"

// State is the capture lifecycle phase. Transitions are forward-only except
// TEARDOWN, which is idempotent.
type State string

const (
	StateInit     State = "INIT"
	StateSetup    State = "SETUP"
	StateCapture  State = "CAPTURE"
	StateTeardown State = "TEARDOWN"
	StateComplete State = "COMPLETE"
	StatePartial  State = "PARTIAL"
	StateError    State = "ERROR"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StatePartial, StateError:
		return true
	}
	return false
}

// Archivable reports whether a capture in this state may be encoded.
func (s State) Archivable() bool {
	return s == StateComplete || s == StatePartial
}

// LogEntry is one append-only capture log line.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Warning   bool      `json:"warning"`
	Trace     string    `json:"trace,omitempty"`
}

// Provenance summarizes the conditions under which a capture was made.
type Provenance struct {
	Software   string    `json:"software"`
	Version    string    `json:"version"`
	OS         string    `json:"os"`
	Target     string    `json:"target"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}
