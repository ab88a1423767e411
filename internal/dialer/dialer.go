// Package dialer models the handoff to the device's native phone dialer.
//
// The console never places calls itself: it builds a tel: URI, the device
// opens it, and from that point the call is invisible to this system. There is
// no completion signal, which is exactly why the session recovery slot exists.
package dialer

import (
	"context"
	"errors"
	"strings"
)

// Handoff is the fire-and-forget instruction returned to the device.
type Handoff struct {
	// URI is the platform link the device should open ("tel:9876543210").
	URI string `json:"uri"`
	// Number is the digits-only number embedded in the URI.
	Number string `json:"number"`
}

// Dialer translates a lead's phone number into a device handoff.
// Keep implementations free of business logic; session state belongs to
// internal/session.
type Dialer interface {
	Handoff(ctx context.Context, phone string) (Handoff, error)
}

var ErrNoNumber = errors.New("dialer: phone number required")

const telScheme = "tel:"

// TelURIDialer builds standard tel: links.
type TelURIDialer struct{}

func (TelURIDialer) Handoff(ctx context.Context, phone string) (Handoff, error) {
	_ = ctx
	digits := digitsOnly(phone)
	if digits == "" {
		return Handoff{}, ErrNoNumber
	}
	return Handoff{URI: telScheme + digits, Number: digits}, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
