package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for call-history events.
// It MUST be append-only; no Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
	List(ctx context.Context, leadID string) ([]Event, error)
}

// Service records the call-history trail. Callers treat recording as
// best-effort and only log failures.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("history: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("history: repository not configured")
	}
	if e.LeadID == "" || e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) List(ctx context.Context, leadID string) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("history: repository not configured")
	}
	if leadID == "" {
		return nil, ErrInvalidEvent
	}
	return s.repo.List(ctx, leadID)
}

// RecordOutcome logs an agent-submitted classification.
func (s *Service) RecordOutcome(ctx context.Context, leadID, actorRole, outcome, duration, message string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeOutcome,
		LeadID:    leadID,
		ActorRole: actorRole,
		Outcome:   outcome,
		Duration:  duration,
		Message:   message,
	})
}

// RecordReset logs a lead being requeued to pending.
func (s *Service) RecordReset(ctx context.Context, leadID, actorRole string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeReset,
		LeadID:    leadID,
		ActorRole: actorRole,
	})
}

// RecordAutoResolve logs a system-resolved short call.
func (s *Service) RecordAutoResolve(ctx context.Context, leadID, outcome, duration, message string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeAutoResolve,
		LeadID:    leadID,
		ActorRole: "system",
		Outcome:   outcome,
		Duration:  duration,
		Message:   message,
	})
}
