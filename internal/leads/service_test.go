package leads

import (
	"context"
	"testing"
	"time"
)

func newTestService() *Service {
	s := NewService(NewMemoryRepo())
	s.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	s.randDigits = func() string { return "0042" }
	return s
}

func TestAdd_ValidTenDigitPhoneIsPending(t *testing.T) {
	s := newTestService()

	l, err := s.Add(context.Background(), Candidate{Name: "Ravi", Phone: "987-654-3210"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if l.Status != StatusPending {
		t.Fatalf("expected pending, got %s", l.Status)
	}
	if l.Phone != "9876543210" {
		t.Fatalf("expected digits-only phone, got %q", l.Phone)
	}
}

func TestAdd_WrongLengthIsInvalid(t *testing.T) {
	s := newTestService()

	for _, phone := range []string{"123456789", "12345678901"} {
		l, err := s.Add(context.Background(), Candidate{Name: "X", Phone: phone})
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if l.Status != StatusInvalid {
			t.Fatalf("phone %q: expected invalid, got %s", phone, l.Status)
		}
		if l.Notes != NoteInvalidLength {
			t.Fatalf("phone %q: expected length note, got %q", phone, l.Notes)
		}
	}
}

func TestAdd_DuplicatePhoneIsInvalid(t *testing.T) {
	s := newTestService()

	first, err := s.Add(context.Background(), Candidate{Name: "A", Phone: "9876543210"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if first.Status != StatusPending {
		t.Fatalf("expected pending, got %s", first.Status)
	}

	second, err := s.Add(context.Background(), Candidate{Name: "B", Phone: "+91 98765 43210"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if second.Status != StatusInvalid {
		t.Fatalf("expected invalid for duplicate, got %s", second.Status)
	}
	if second.Notes != NoteDuplicate {
		t.Fatalf("expected duplicate note, got %q", second.Notes)
	}
}

func TestAddBatch_InBatchDedup(t *testing.T) {
	s := newTestService()

	rows, err := s.AddBatch(context.Background(), []Candidate{
		{Name: "A", Phone: "9876543210"},
		{Name: "B", Phone: "9876543210"},
		{Name: "C", Phone: "9123456780"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if rows[0].Status != StatusPending {
		t.Fatalf("row 0: expected pending, got %s", rows[0].Status)
	}
	if rows[1].Status != StatusInvalid || rows[1].Notes != NoteDuplicate {
		t.Fatalf("row 1: expected in-batch duplicate, got %s %q", rows[1].Status, rows[1].Notes)
	}
	if rows[2].Status != StatusPending {
		t.Fatalf("row 2: expected pending, got %s", rows[2].Status)
	}
}

func TestAdd_BlankNameGetsPlaceholder(t *testing.T) {
	s := newTestService()

	l, err := s.Add(context.Background(), Candidate{Phone: "9876543210"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if l.Name != "User-0042" {
		t.Fatalf("expected placeholder name, got %q", l.Name)
	}
}

func TestApplyUpdate_BumpsRevision(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	l, err := s.Add(ctx, Candidate{Name: "A", Phone: "9876543210"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	_, before := s.Snapshot()

	st := StatusInterested
	if err := s.ApplyUpdate(ctx, l.ID, UpdateFields{Status: &st}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	rows, after := s.Snapshot()
	if after <= before {
		t.Fatalf("expected revision bump, before=%d after=%d", before, after)
	}
	got, ok := s.FindByID(l.ID)
	if !ok || got.Status != StatusInterested {
		t.Fatalf("expected interested in snapshot, got %+v", got)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}

func TestApplyUpdate_UnknownIDRefreshesAndFails(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	st := StatusComplete
	err := s.ApplyUpdate(ctx, "nope", UpdateFields{Status: &st})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s.Revision() == 0 {
		t.Fatalf("expected convergence refresh even on failure")
	}
}

func TestResetToPending_ClearsInteraction(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	l, _ := s.Add(ctx, Candidate{Name: "A", Phone: "9876543210"})
	st := StatusNotInterested
	notes := "long note"
	dur := "2m 5s"
	now := time.Unix(1700000100, 0).UTC()
	if err := s.ApplyUpdate(ctx, l.ID, UpdateFields{Status: &st, Notes: &notes, Duration: &dur, Timestamp: &now}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if err := s.ResetToPending(ctx, l.ID); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got, _ := s.FindByID(l.ID)
	if got.Status != StatusPending || got.Notes != "" || got.Duration != "" || !got.Timestamp.IsZero() {
		t.Fatalf("expected cleared pending row, got %+v", got)
	}
}

func TestPINs_DefaultsWhenUnset(t *testing.T) {
	s := newTestService()

	p, err := s.GetPINs(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if p != DefaultPINs() {
		t.Fatalf("expected defaults, got %+v", p)
	}
}

func TestPINs_RoundTrip(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	want := PINs{Admin: "9999", Agent: "letmein"}
	if err := s.SetPINs(ctx, want); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got, err := s.GetPINs(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}
