package session

import (
	"bytes"
	"time"
)

// Status represents the lifecycle state of an interview session.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusEnded      Status = "ENDED"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerModel Speaker = "model"
)

// Turn is one message in a session's history. Content is either plain
// text or an audio payload with its mime type, never both.
type Turn struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text,omitempty"`
	Audio   []byte  `json:"audio,omitempty"`
	MIME    string  `json:"mime,omitempty"`
}

// sameContent reports whether two turns carry the same payload,
// ignoring the speaker.
func (t Turn) sameContent(other Turn) bool {
	return t.Text == other.Text && t.MIME == other.MIME && bytes.Equal(t.Audio, other.Audio)
}

// Session is the server-side record of one interview attempt, keyed by an
// opaque id in the store.
//
// History is append-only while the session is IN_PROGRESS and is cleared
// exactly at the transition to ENDED. A nil History is an invalid state,
// distinct from an empty one. Seq increases by one on every write and is
// the version checked by the store's optimistic concurrency control.
type Session struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity,omitempty"`
	Role      string    `json:"role,omitempty"`
	Status    Status    `json:"status"`
	History   []Turn    `json:"history"`
	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
	Seq       uint64    `json:"seq"`
}

// Clone returns a deep copy so callers can mutate freely before a Put.
func (s *Session) Clone() *Session {
	cp := *s
	if s.History != nil {
		cp.History = make([]Turn, len(s.History))
		copy(cp.History, s.History)
	}
	return &cp
}
