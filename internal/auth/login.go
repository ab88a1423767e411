package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"lead-console/internal/leads"

	"github.com/google/uuid"
)

var ErrBadPIN = errors.New("auth: wrong PIN")

// PINSource exposes the stored access PINs. Satisfied by leads.Service.
type PINSource interface {
	GetPINs(ctx context.Context) (leads.PINs, error)
}

// Authenticator exchanges a role plus PIN for a token pair. The owner PIN
// unlocks the management surface; the agent PIN unlocks the calling console.
type Authenticator struct {
	pins   PINSource
	tokens *Manager
	clock  func() time.Time
}

func NewAuthenticator(pins PINSource, tokens *Manager) *Authenticator {
	return &Authenticator{pins: pins, tokens: tokens, clock: time.Now}
}

func (a *Authenticator) Login(ctx context.Context, role, pin string) (TokenPair, error) {
	stored, err := a.pins.GetPINs(ctx)
	if err != nil {
		return TokenPair{}, err
	}

	var want string
	switch role {
	case RoleOwner:
		want = stored.Admin
	case RoleAgent:
		want = stored.Agent
	default:
		return TokenPair{}, ErrBadPIN
	}

	if subtle.ConstantTimeCompare([]byte(pin), []byte(want)) != 1 {
		return TokenPair{}, ErrBadPIN
	}

	return a.tokens.IssuePair(a.clock(), uuid.NewString(), role)
}

// Refresh trades a valid refresh token for a new pair with the same identity
// and role.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := a.tokens.Verify(refreshToken, TokenTypeRefresh, a.clock())
	if err != nil {
		return TokenPair{}, err
	}
	if claims.Role != RoleOwner && claims.Role != RoleAgent {
		return TokenPair{}, ErrBadPIN
	}
	return a.tokens.IssuePair(a.clock(), claims.UserID, claims.Role)
}
