package auditor

import (
	"context"
	"errors"
	"testing"
)

type fakeModel struct {
	out string
	err error
}

func (f fakeModel) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return f.out, f.err
}

func TestAudit_RemoteVerdictWins(t *testing.T) {
	s := NewService(fakeModel{out: `{"isValid": false, "reason": "too generic"}`}, 0, nil)

	v := s.Audit(context.Background(), "done", "5m 0s")
	if v.Valid {
		t.Fatalf("expected invalid")
	}
	if v.Reason != "too generic" {
		t.Fatalf("expected remote reason, got %q", v.Reason)
	}
}

func TestAudit_RemoteAcceptsFencedJSON(t *testing.T) {
	s := NewService(fakeModel{out: "```json\n{\"isValid\": true}\n```"}, 0, nil)

	v := s.Audit(context.Background(), "customer asked for a callback next week", "2m 10s")
	if !v.Valid {
		t.Fatalf("expected valid")
	}
}

func TestAudit_RemoteErrorFallsBackToHeuristic(t *testing.T) {
	s := NewService(fakeModel{err: errors.New("boom")}, 0, nil)

	// The fallback never produces a reason.
	v := s.Audit(context.Background(), "okkkkkk", "2m 0s")
	if v.Valid {
		t.Fatalf("expected heuristic rejection")
	}
	if v.Reason != "" {
		t.Fatalf("heuristic must not explain itself, got %q", v.Reason)
	}
}

func TestAudit_MisshapedResponseFallsBack(t *testing.T) {
	s := NewService(fakeModel{out: `sure! the note looks fine to me`}, 0, nil)

	v := s.Audit(context.Background(), "discussed pricing and timelines", "3m 2s")
	if !v.Valid {
		t.Fatalf("expected heuristic pass, got %+v", v)
	}
}

func TestAudit_NilModelUsesHeuristic(t *testing.T) {
	s := NewService(nil, 0, nil)

	if v := s.Audit(context.Background(), "spoke about the demo slot", "4m 0s"); !v.Valid {
		t.Fatalf("expected pass, got %+v", v)
	}
}

func TestHeuristic(t *testing.T) {
	cases := []struct {
		name     string
		note     string
		duration string
		valid    bool
	}{
		{"repeated run", "aaaaah fine", "0m 30s", false},
		{"short run passes", "aaaa fine", "0m 30s", true},
		{"single word long call", "done", "5m 0s", false},
		{"single word short call", "done", "0m 45s", true},
		{"two words long call", "wants callback", "5m 0s", true},
		{"empty note short call", "", "0m 9s", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Heuristic(tc.note, tc.duration); got.Valid != tc.valid {
				t.Fatalf("Heuristic(%q, %q) = %v, want %v", tc.note, tc.duration, got.Valid, tc.valid)
			}
		})
	}
}
