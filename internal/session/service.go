package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the store lifetime of a session record, refreshed on
// every read and write.
const DefaultTTL = time.Hour

// casAttempts bounds the read-modify-write retry loop. Contention on one
// session id is rare (duplicate submissions, double-clicks), so exhausting
// this many attempts means something is genuinely wrong and the caller
// gets ErrConflict.
const casAttempts = 16

// Service owns the session record's schema and lifecycle. All mutations go
// through the store's compare-and-set so concurrent requests against the
// same id cannot overwrite each other's history.
type Service struct {
	store Store
	ttl   time.Duration
}

// NewService creates a Service on the given store. A non-positive ttl
// falls back to DefaultTTL.
func NewService(store Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, ttl: ttl}
}

// Create allocates a fresh session id and writes a new IN_PROGRESS record
// with empty history and a full TTL window.
func (s *Service) Create(ctx context.Context, identity, role string) (string, error) {
	id := NewSessionID(identity)
	sess := &Session{
		ID:        id,
		Identity:  identity,
		Role:      role,
		Status:    StatusInProgress,
		History:   []Turn{},
		CreatedAt: time.Now().UTC(),
		Seq:       1,
	}
	if err := s.store.Put(ctx, id, sess, 0, s.ttl); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// Get reads a session record. Absent and expired records are both
// ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// AddTurn appends one turn to the session's history and rewrites the
// record with a fresh TTL window. User turns also increment TurnCount.
// Concurrent callers are serialized by the store's sequence check; the
// loop reloads and retries on conflict so no turn is ever lost.
//
// A user turn identical to an unanswered trailing user turn is absorbed
// rather than appended, so a client resubmitting an interaction after a
// failed model reply does not stack duplicates.
func (s *Service) AddTurn(ctx context.Context, id string, turn Turn) (*Session, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur.Status == StatusEnded {
			return nil, ErrEnded
		}
		if cur.History == nil {
			return nil, fmt.Errorf("session %s: history missing", id)
		}

		if turn.Speaker == SpeakerUser && len(cur.History) > 0 {
			if last := cur.History[len(cur.History)-1]; last.Speaker == SpeakerUser && last.sameContent(turn) {
				return cur, nil
			}
		}

		next := cur.Clone()
		next.History = append(next.History, turn)
		if turn.Speaker == SpeakerUser {
			next.TurnCount++
		}
		next.Seq++

		err = s.store.Put(ctx, id, next, cur.Seq, s.ttl)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		backoff(ctx, attempt)
	}
	return nil, ErrConflict
}

// End transitions the session to ENDED, clearing history and nulling the
// role, and rewrites the record with a fresh TTL so callers keep getting
// the terminal response for one more window. Ending an already-ended
// session is a no-op that still succeeds.
func (s *Service) End(ctx context.Context, id string) error {
	for attempt := 0; attempt < casAttempts; attempt++ {
		cur, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}

		next := cur.Clone()
		next.Status = StatusEnded
		next.History = []Turn{}
		next.Role = ""
		next.Seq++

		err = s.store.Put(ctx, id, next, cur.Seq, s.ttl)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
		backoff(ctx, attempt)
	}
	return ErrConflict
}

// Delete removes the record unconditionally.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Extend resets the TTL without altering the record. Called on every
// request to keep active conversations alive.
func (s *Service) Extend(ctx context.Context, id string) error {
	return s.store.Extend(ctx, id, s.ttl)
}

// NewSessionID derives an opaque, collision-resistant id from an identity
// hint, a high-resolution timestamp, and a random suffix. Ids are never
// reused; concurrent calls for the same identity cannot collide because of
// the random component.
func NewSessionID(identity string) string {
	if identity == "" {
		identity = "anon"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s_%d_%s", identity, time.Now().UnixNano(), suffix)
}

// backoff sleeps briefly with jitter before a CAS retry, respecting
// context cancellation.
func backoff(ctx context.Context, attempt int) {
	delay := time.Duration(attempt+1) * time.Millisecond
	delay += time.Duration(rand.Int63n(int64(time.Millisecond)))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
	}
}
