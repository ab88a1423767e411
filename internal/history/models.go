package history

import "time"

// Event is an immutable record of a status-changing call action.
//
// Invariants:
// - Events are never updated or deleted.
// - Recording is best-effort; call flows must not block on history failures.
type Event struct {
	ID string `json:"id" db:"id"`

	Type EventType `json:"type" db:"type"`

	LeadID string `json:"lead_id" db:"lead_id"`

	// ActorRole is the role that caused the event ("agent", "owner", or
	// "system" for auto-resolved short calls).
	ActorRole string `json:"actor_role,omitempty" db:"actor_role"`

	// Outcome is the status the lead was moved to.
	Outcome string `json:"outcome,omitempty" db:"outcome"`

	// Duration is the talk-time label of the attempt, when applicable.
	Duration string `json:"duration,omitempty" db:"duration"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeOutcome     EventType = "call_outcome"
	EventTypeAutoResolve EventType = "auto_resolve"
	EventTypeReset       EventType = "lead_reset"
)
