package history

import (
	"context"
	"testing"
	"time"
)

func TestAppend_FillsIDAndTimestamp(t *testing.T) {
	repo := NewMemoryRepo()
	s := NewService(repo)
	now := time.Unix(1700000000, 0).UTC()
	s.clock = func() time.Time { return now }

	if err := s.RecordOutcome(context.Background(), "lead-1", "agent", "interested", "2m 3s", "submitted"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	events, err := s.List(context.Background(), "lead-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !e.CreatedAt.Equal(now) {
		t.Fatalf("expected clock timestamp, got %v", e.CreatedAt)
	}
	if e.Type != EventTypeOutcome || e.ActorRole != "agent" {
		t.Fatalf("unexpected event: %+v", e)
	}
}

func TestAppend_RejectsMissingLead(t *testing.T) {
	s := NewService(NewMemoryRepo())
	if err := s.Append(context.Background(), Event{Type: EventTypeOutcome}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestRecordAutoResolve_UsesSystemActor(t *testing.T) {
	repo := NewMemoryRepo()
	s := NewService(repo)

	if err := s.RecordAutoResolve(context.Background(), "lead-2", "not_received", "0m 7s", "Auto-Rejected (Under 10s)"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	events, _ := s.List(context.Background(), "lead-2")
	if len(events) != 1 || events[0].ActorRole != "system" || events[0].Type != EventTypeAutoResolve {
		t.Fatalf("unexpected events: %+v", events)
	}
}
