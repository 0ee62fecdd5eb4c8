package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a session is absent or expired. The two
	// cases are indistinguishable in a TTL store.
	ErrNotFound = errors.New("session not found")

	// ErrConflict is returned when a write targets a stale sequence number,
	// meaning another caller mutated the session first.
	ErrConflict = errors.New("session modified concurrently")

	// ErrEnded is returned when a mutation targets a session whose status
	// is ENDED.
	ErrEnded = errors.New("session has ended")
)

// StorageError wraps failures of the underlying store so that callers can
// tell an outage apart from a missing session.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Store is a TTL-keyed store holding one serialized session record per id.
//
// Put is a compare-and-set: the write succeeds only when the stored
// record's Seq equals expectedSeq. An expectedSeq of zero means create;
// creating over an existing key fails with ErrConflict. Callers are
// responsible for incrementing s.Seq before the write.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Put(ctx context.Context, id string, s *Session, expectedSeq uint64, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, ttl time.Duration) error
}
