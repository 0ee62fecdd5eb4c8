package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteRecorder(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "audits.db")

	rec, err := NewSQLiteRecorder(ctx, dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteRecorder failed: %v", err)
	}
	defer rec.Close()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{Action: ActionInit, Collection: CollectionInterviews, User: User{Identity: "a@b.com", Role: "senior-software-engineer"}, At: at},
		{Action: ActionEnd, Reason: ReasonOffensiveLanguage, Collection: CollectionInterviews, User: User{Identity: "a@b.com", Role: "senior-software-engineer"}, At: at.Add(time.Minute)},
		{Action: ActionEnd, Reason: ReasonUserRequest, Collection: CollectionUsers, User: User{Identity: "c@d.com"}, At: at.Add(2 * time.Minute)},
	}
	for _, r := range records {
		if err := rec.Record(ctx, r); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := rec.List(ctx, CollectionInterviews)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 interview records, got %d", len(got))
	}

	// Newest first.
	if got[0].Reason != ReasonOffensiveLanguage {
		t.Errorf("expected moderation record first, got %+v", got[0])
	}
	if got[1].Action != ActionInit || got[1].User.Identity != "a@b.com" {
		t.Errorf("unexpected init record: %+v", got[1])
	}
	if !got[1].At.Equal(at) {
		t.Errorf("timestamp not preserved: %v != %v", got[1].At, at)
	}
}

func TestSQLiteRecorderStampsZeroTime(t *testing.T) {
	ctx := context.Background()
	rec, err := NewSQLiteRecorder(ctx, filepath.Join(t.TempDir(), "audits.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRecorder failed: %v", err)
	}
	defer rec.Close()

	if err := rec.Record(ctx, Record{Action: ActionEnd, Reason: ReasonAI, Collection: CollectionInterviews}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := rec.List(ctx, CollectionInterviews)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].At.IsZero() {
		t.Errorf("expected stamped timestamp, got %+v", got)
	}
}
