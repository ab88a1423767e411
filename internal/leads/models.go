package leads

import "time"

// Lead is a contact record to be called.
//
// Phone invariant: Phone is stored digits-only (canonical form) and there is at
// most one working lead per canonical phone number. Candidates that fail intake
// validation are kept with StatusInvalid instead of being dropped, so the owner
// can review and restore or delete them.
type Lead struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Phone string `json:"phone" db:"phone"`

	Status Status `json:"status" db:"status"`

	// Notes is the free-text summary of the last interaction.
	Notes string `json:"notes,omitempty" db:"notes"`

	// Duration is the human-readable talk time of the last attempt ("3m 12s").
	Duration string `json:"duration,omitempty" db:"duration"`

	// Timestamp is the time of the last status-changing event.
	// Zero for never-contacted leads, and omitted from JSON rather than
	// serialized as the year-one sentinel.
	Timestamp time.Time `json:"timestamp,omitzero" db:"timestamp"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Status string

const (
	StatusPending       Status = "pending"
	StatusInterested    Status = "interested"
	StatusCallBack      Status = "call_back"
	StatusComplete      Status = "complete"
	StatusNotReceived   Status = "not_received"
	StatusNotInterested Status = "not_interested"
	// StatusInvalid marks rows that failed intake validation (wrong digit
	// count or duplicate phone). Never presented to agents.
	StatusInvalid Status = "invalid"
)

// IsOutcome reports whether s is a status an agent may choose when closing a
// call. Pending and invalid are system states, never outcomes.
func (s Status) IsOutcome() bool {
	switch s {
	case StatusInterested, StatusCallBack, StatusComplete, StatusNotReceived, StatusNotInterested:
		return true
	default:
		return false
	}
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInvalid:
		return true
	default:
		return s.IsOutcome()
	}
}

// Candidate is an intake request for a new lead. Name may be blank; a
// placeholder is generated on insert.
type Candidate struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// UpdateFields is a partial update applied to one lead row. Nil fields are
// left unchanged.
type UpdateFields struct {
	Status    *Status
	Notes     *string
	Duration  *string
	Timestamp *time.Time
	Name      *string
}

// Intake rejection notes, written verbatim into Lead.Notes so the review
// queue can explain why a row was quarantined.
const (
	NoteInvalidLength = "Invalid Number (Must be 10 digits)"
	NoteDuplicate     = "Duplicate Entry"
)

// PINs are the two access PINs kept in the config table.
type PINs struct {
	Admin string `json:"admin"`
	Agent string `json:"agent"`
}

// DefaultPINs applies when the config row has never been written.
func DefaultPINs() PINs {
	return PINs{Admin: "1234", Agent: "agent123"}
}
