// Package outcome validates and finalizes call results.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"lead-console/internal/auditor"
	"lead-console/internal/history"
	"lead-console/internal/leads"
)

// Store is the write-through surface the pipeline needs from the lead store.
// The implementation must refetch its snapshot after the write acknowledgment
// so every reader observes the new status immediately.
type Store interface {
	ApplyUpdate(ctx context.Context, id string, f leads.UpdateFields) error
}

var (
	// ErrInvalidStatus: the chosen status is outside the closed outcome set.
	// Callers are expected to disable submission before this can happen.
	ErrInvalidStatus = errors.New("outcome: status not allowed")
	ErrNoteTooShort  = errors.New("outcome: note below minimum length for duration")
)

// RejectedError is a policy decision, not a failure: the auditor judged the
// note unacceptable. The agent may edit and resubmit.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return "outcome: note rejected by quality audit"
	}
	return "outcome: note rejected: " + e.Reason
}

// Note length tiers: short calls need no documentation, longer calls need
// proportionally more.
const (
	shortCallCeiling = 60  // seconds; at or below: no note required
	midCallCeiling   = 180 // seconds; above shortCallCeiling: 5 chars, above this: 20
)

// MinNoteLength returns the minimum note length for a call of the given
// duration.
func MinNoteLength(durationSeconds int) int {
	switch {
	case durationSeconds > midCallCeiling:
		return 20
	case durationSeconds > shortCallCeiling:
		return 5
	default:
		return 0
	}
}

// Request carries one submission attempt.
type Request struct {
	LeadID          string
	Status          leads.Status
	Notes           string
	Name            string // optional corrected name; blank leaves unchanged
	Duration        string // talk-time label, "1m 35s"
	DurationSeconds int
	ActorRole       string
}

// Pipeline finalizes call results: layered validation, optional quality
// audit, one atomic row update, then the mandatory refresh (performed by the
// Store implementation strictly after the write).
type Pipeline struct {
	store   Store
	auditor auditor.Auditor
	history *history.Service
	clock   func() time.Time
	log     *slog.Logger
}

func NewPipeline(store Store, aud auditor.Auditor, hist *history.Service, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{store: store, auditor: aud, history: hist, clock: time.Now, log: log}
}

// Submit runs the full validation gate and writes the outcome.
//
// Gate order: status enum, note length tier, quality audit (only for calls
// over a minute with a non-empty note), then the write. Auditor infrastructure
// failure is pass-through by design; only an explicit invalid verdict blocks.
func (p *Pipeline) Submit(ctx context.Context, req Request) error {
	if req.LeadID == "" {
		return leads.ErrInvalidArgument
	}
	if !req.Status.IsOutcome() {
		return ErrInvalidStatus
	}

	// Character count, not bytes: notes are frequently Devanagari, where
	// every character is three bytes.
	note := strings.TrimSpace(req.Notes)
	if utf8.RuneCountInString(note) < MinNoteLength(req.DurationSeconds) {
		return ErrNoteTooShort
	}

	if req.DurationSeconds > shortCallCeiling && note != "" && p.auditor != nil {
		if v := p.auditor.Audit(ctx, note, req.Duration); !v.Valid {
			return &RejectedError{Reason: v.Reason}
		}
	}

	if err := p.write(ctx, req); err != nil {
		return err
	}
	p.record(ctx, req, history.EventTypeOutcome)
	return nil
}

// SubmitAuto is the system write path for auto-resolved short calls. It skips
// the note gates: the note is system-generated, not agent input.
func (p *Pipeline) SubmitAuto(ctx context.Context, req Request) error {
	if req.LeadID == "" {
		return leads.ErrInvalidArgument
	}
	if !req.Status.IsOutcome() {
		return ErrInvalidStatus
	}
	if err := p.write(ctx, req); err != nil {
		return err
	}
	p.record(ctx, req, history.EventTypeAutoResolve)
	return nil
}

func (p *Pipeline) write(ctx context.Context, req Request) error {
	now := p.clock().UTC()
	f := leads.UpdateFields{
		Status:    &req.Status,
		Notes:     &req.Notes,
		Duration:  &req.Duration,
		Timestamp: &now,
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		f.Name = &name
	}
	if err := p.store.ApplyUpdate(ctx, req.LeadID, f); err != nil {
		return fmt.Errorf("outcome write: %w", err)
	}
	return nil
}

func (p *Pipeline) record(ctx context.Context, req Request, typ history.EventType) {
	if p.history == nil {
		return
	}
	var err error
	if typ == history.EventTypeAutoResolve {
		err = p.history.RecordAutoResolve(ctx, req.LeadID, string(req.Status), req.Duration, req.Notes)
	} else {
		err = p.history.RecordOutcome(ctx, req.LeadID, req.ActorRole, string(req.Status), req.Duration, req.Notes)
	}
	if err != nil {
		p.log.Warn("history append failed", "lead_id", req.LeadID, "err", err)
	}
}
