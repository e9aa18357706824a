package protocol

import "time"

// TranscriptDelta is the newly recognized portion of text for one
// reconciliation step. Terminal marks the end of a dictation session and
// carries no text.
type TranscriptDelta struct {
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	Text      string    `json:"text,omitempty"`
	Terminal  bool      `json:"terminal,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionStatus announces daemon state transitions on the bus.
type SessionStatus struct {
	DaemonID  string    `json:"daemon_id"`
	SessionID string    `json:"session_id,omitempty"`
	State     string    `json:"state"` // idle, recording
	Timestamp time.Time `json:"timestamp"`
}

// Heartbeat is published periodically while the daemon is alive.
type Heartbeat struct {
	DaemonID  string    `json:"daemon_id"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectTranscriptDelta = "murmur.transcript.delta"
	SubjectSessionStatus   = "murmur.session.status"
	SubjectHeartbeat       = "murmur.daemon.heartbeat"
)
