package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Role names. Keep these stable; they are part of the token contract.
const (
	RoleOwner = "owner"
	RoleAgent = "agent"
)

// Claims are the only supported JWT claims shape for this service.
// UserID identifies the console session, not a provisioned account: this is a
// PIN-gated tool and identities are minted at login.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
