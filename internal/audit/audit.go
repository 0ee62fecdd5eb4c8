// Package audit records policy-relevant events (interview starts,
// terminations, moderation hits) in a durable collection.
package audit

import (
	"context"
	"time"
)

// Actions written by the interview pipeline.
const (
	ActionInit = "init"
	ActionEnd  = "end"
)

// Reasons attached to end records.
const (
	ReasonAI                = "AI detection"
	ReasonUserRequest       = "User request"
	ReasonOffensiveLanguage = "Offensive language"
)

// Collections the records belong to.
const (
	CollectionUsers      = "users"
	CollectionInterviews = "interviews"
)

// User identifies who the record is about.
type User struct {
	Identity string `json:"identity"`
	Role     string `json:"role,omitempty"`
}

// Record is one audit entry.
type Record struct {
	Action     string    `json:"action"`
	Reason     string    `json:"reason,omitempty"`
	Collection string    `json:"collection"`
	User       User      `json:"user"`
	At         time.Time `json:"at"`
}

// Recorder is the audit sink. Failures are logged by callers, never fatal
// to the user-facing turn.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// RecorderFunc adapts a function to the Recorder interface.
type RecorderFunc func(ctx context.Context, rec Record) error

func (f RecorderFunc) Record(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}
