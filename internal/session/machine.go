// Package session drives the per-agent call lifecycle.
//
// The lifecycle is deliberately pessimistic about the environment: the dial is
// a one-way handoff to the device, the process may be killed mid-call, and the
// end-of-call signal can arrive more than once. The machine therefore persists
// a recovery snapshot before every handoff and funnels every end signal
// through a single idempotent transition.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lead-console/internal/dialer"
	"lead-console/internal/leads"
	"lead-console/internal/outcome"
)

// State is the session phase. Only the three values below exist.
type State string

const (
	StateIdle    State = "idle"
	StateCalling State = "calling"
	StateOutcome State = "outcome"
)

// ShortCallThreshold is the talk time at or below which a call is considered
// a ghost call (misdial, instant hangup, network drop) and auto-resolved
// without agent input.
const ShortCallThreshold = 10 * time.Second

// AutoRejectNote is the system note written on auto-resolved ghost calls.
const AutoRejectNote = "Auto-Rejected (Under 10s)"

var (
	ErrBusy             = errors.New("session: a call is already in progress")
	ErrNoPendingOutcome = errors.New("session: no call awaiting an outcome")
)

// Submitter is the outcome write path the machine hands finished calls to.
type Submitter interface {
	Submit(ctx context.Context, req outcome.Request) error
	SubmitAuto(ctx context.Context, req outcome.Request) error
}

// LeadFinder resolves a lead from the in-memory snapshot during recovery.
type LeadFinder interface {
	FindByID(id string) (leads.Lead, bool)
}

// Guard is an optional cross-process exclusivity check acquired on dial and
// released whenever the session returns to idle. It backstops the in-process
// state check when the same agent identity is active on two devices.
type Guard interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// EndResult reports what the end-of-call transition did.
type EndResult struct {
	// Transitioned is false when the signal was a duplicate and ignored.
	Transitioned bool
	// AutoResolved is true when the call was a ghost call and the outcome
	// was written by the system.
	AutoResolved    bool
	DurationSeconds int
	DurationLabel   string
}

// View is a read-only snapshot of the machine for the API layer.
type View struct {
	State         State       `json:"state"`
	Lead          *leads.Lead `json:"lead,omitempty"`
	StartedAt     *time.Time  `json:"started_at,omitempty"`
	DurationLabel string      `json:"duration,omitempty"`
	DurationSecs  int         `json:"duration_seconds,omitempty"`
}

// Machine is one agent's call session. All methods are safe for concurrent
// use; duplicate end-of-call signals collapse into a single transition.
type Machine struct {
	agentID  string
	slot     RecoverySlot
	dialer   dialer.Dialer
	pipeline Submitter
	guard    Guard
	clock    func() time.Time
	log      *slog.Logger

	mu        sync.Mutex
	state     State
	lead      leads.Lead
	startTime time.Time
	// duration of the finished call, frozen at end-of-call and carried into
	// the outcome submission.
	durationSecs  int
	durationLabel string
}

func NewMachine(agentID string, slot RecoverySlot, d dialer.Dialer, pipe Submitter, guard Guard, log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		agentID:  agentID,
		slot:     slot,
		dialer:   d,
		pipeline: pipe,
		guard:    guard,
		clock:    time.Now,
		log:      log.With("agent_id", agentID),
		state:    StateIdle,
	}
}

// Dial starts a call against the given lead. The recovery snapshot is
// persisted before the device handoff is built: if the process dies the
// instant the dialer opens, the session is still reconstructible.
func (m *Machine) Dial(ctx context.Context, lead leads.Lead) (dialer.Handoff, error) {
	if lead.ID == "" || lead.Phone == "" {
		return dialer.Handoff{}, leads.ErrInvalidArgument
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return dialer.Handoff{}, ErrBusy
	}

	if m.guard != nil {
		ok, err := m.guard.Acquire(ctx)
		if err != nil {
			return dialer.Handoff{}, fmt.Errorf("session guard: %w", err)
		}
		if !ok {
			return dialer.Handoff{}, ErrBusy
		}
	}

	start := m.clock()
	if err := m.slot.Save(ctx, Snapshot{
		StartMS: start.UnixMilli(),
		State:   StateCalling,
		LeadID:  lead.ID,
	}); err != nil {
		// A dead slot degrades recovery, not dialing.
		m.log.Warn("recovery snapshot not persisted", "lead_id", lead.ID, "err", err)
	}

	h, err := m.dialer.Handoff(ctx, lead.Phone)
	if err != nil {
		m.clearSlot(ctx)
		m.releaseGuard(ctx)
		return dialer.Handoff{}, err
	}

	m.state = StateCalling
	m.lead = lead
	m.startTime = start
	m.durationSecs = 0
	m.durationLabel = ""
	m.log.Info("call started", "lead_id", lead.ID, "number", h.Number)
	return h, nil
}

// End is the single funnel for every end-of-call signal: the agent returning
// to the app, an explicit hang-up tap, or a recovery resume. The first signal
// performs the transition; later duplicates are no-ops reporting
// Transitioned=false.
func (m *Machine) End(ctx context.Context) (EndResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateCalling {
		return EndResult{}, nil
	}

	elapsed := int(m.clock().Sub(m.startTime) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	label := FormatDuration(elapsed)
	m.durationSecs = elapsed
	m.durationLabel = label

	m.clearSlot(ctx)

	if elapsed < int(ShortCallThreshold/time.Second) {
		// Ghost call. Resolve it without agent input and return to idle
		// even if the write fails: stranding the agent on a form for a
		// seven second misdial is worse than a lost auto-note.
		err := m.pipeline.SubmitAuto(ctx, outcome.Request{
			LeadID:          m.lead.ID,
			Status:          leads.StatusNotReceived,
			Notes:           AutoRejectNote,
			Duration:        label,
			DurationSeconds: elapsed,
		})
		if err != nil {
			m.log.Warn("auto-resolve write failed", "lead_id", m.lead.ID, "err", err)
		}
		m.log.Info("call auto-resolved", "lead_id", m.lead.ID, "duration", label)
		m.toIdle(ctx)
		return EndResult{Transitioned: true, AutoResolved: true, DurationSeconds: elapsed, DurationLabel: label}, nil
	}

	m.state = StateOutcome
	m.log.Info("call ended", "lead_id", m.lead.ID, "duration", label)
	return EndResult{Transitioned: true, DurationSeconds: elapsed, DurationLabel: label}, nil
}

// Submit finalizes the pending outcome through the validation pipeline. On
// any error the session stays in the outcome state so the agent can correct
// and resubmit; nothing is lost.
func (m *Machine) Submit(ctx context.Context, status leads.Status, notes, name, actorRole string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateOutcome {
		return ErrNoPendingOutcome
	}

	err := m.pipeline.Submit(ctx, outcome.Request{
		LeadID:          m.lead.ID,
		Status:          status,
		Notes:           notes,
		Name:            name,
		Duration:        m.durationLabel,
		DurationSeconds: m.durationSecs,
		ActorRole:       actorRole,
	})
	if err != nil {
		return err
	}

	m.log.Info("outcome recorded", "lead_id", m.lead.ID, "status", status)
	m.toIdle(ctx)
	return nil
}

// Abandon discards the pending outcome form without writing anything.
func (m *Machine) Abandon(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateOutcome {
		return ErrNoPendingOutcome
	}
	m.log.Info("outcome abandoned", "lead_id", m.lead.ID)
	m.toIdle(ctx)
	return nil
}

// Reset forces the machine back to idle from any state. Used when the agent
// explicitly bails out of a stuck session.
func (m *Machine) Reset(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		m.log.Info("session reset", "from", m.state)
	}
	m.toIdle(ctx)
}

// Restore rebuilds the session from the recovery slot, typically once at
// startup. It does not re-dial; it only reinstates the calling state with the
// original start time so the eventual End computes the true elapsed time.
// A missing or corrupt slot leaves the machine idle.
func (m *Machine) Restore(ctx context.Context, finder LeadFinder) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle {
		return false, nil
	}

	snap, ok, err := m.slot.Load(ctx)
	if err != nil {
		return false, err
	}
	if !ok || snap.State != StateCalling {
		return false, nil
	}

	lead := leads.Lead{ID: snap.LeadID}
	if finder != nil {
		if found, exists := finder.FindByID(snap.LeadID); exists {
			lead = found
		}
	}

	m.state = StateCalling
	m.lead = lead
	m.startTime = time.UnixMilli(snap.StartMS)
	m.log.Info("session restored", "lead_id", snap.LeadID, "started_at", m.startTime)
	return true, nil
}

// Current returns a read-only view of the session. While calling, the
// duration fields report live elapsed time.
func (m *Machine) Current() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{State: m.state}
	if m.state == StateIdle {
		return v
	}

	lead := m.lead
	v.Lead = &lead
	switch m.state {
	case StateCalling:
		start := m.startTime
		v.StartedAt = &start
		elapsed := int(m.clock().Sub(m.startTime) / time.Second)
		if elapsed < 0 {
			elapsed = 0
		}
		v.DurationSecs = elapsed
		v.DurationLabel = FormatDuration(elapsed)
	case StateOutcome:
		v.DurationSecs = m.durationSecs
		v.DurationLabel = m.durationLabel
	}
	return v
}

// toIdle clears all per-call state. Callers hold m.mu.
func (m *Machine) toIdle(ctx context.Context) {
	m.state = StateIdle
	m.lead = leads.Lead{}
	m.startTime = time.Time{}
	m.durationSecs = 0
	m.durationLabel = ""
	m.clearSlot(ctx)
	m.releaseGuard(ctx)
}

func (m *Machine) clearSlot(ctx context.Context) {
	if err := m.slot.Clear(ctx); err != nil {
		m.log.Warn("recovery slot clear failed", "err", err)
	}
}

func (m *Machine) releaseGuard(ctx context.Context) {
	if m.guard == nil {
		return
	}
	if err := m.guard.Release(ctx); err != nil {
		m.log.Warn("session guard release failed", "err", err)
	}
}

// FormatDuration renders elapsed whole seconds as "3m 20s".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}
