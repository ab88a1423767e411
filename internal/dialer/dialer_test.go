package dialer

import (
	"context"
	"testing"
)

func TestHandoff_StripsFormatting(t *testing.T) {
	h, err := TelURIDialer{}.Handoff(context.Background(), "+91 98765-43210")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if h.URI != "tel:919876543210" {
		t.Fatalf("unexpected uri %q", h.URI)
	}
	if h.Number != "919876543210" {
		t.Fatalf("unexpected number %q", h.Number)
	}
}

func TestHandoff_RejectsEmptyNumber(t *testing.T) {
	if _, err := (TelURIDialer{}).Handoff(context.Background(), "n/a"); err != ErrNoNumber {
		t.Fatalf("expected ErrNoNumber, got %v", err)
	}
}
