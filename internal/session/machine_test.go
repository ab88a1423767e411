package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"lead-console/internal/dialer"
	"lead-console/internal/leads"
	"lead-console/internal/outcome"
)

type fakeSlot struct {
	snap    Snapshot
	has     bool
	saves   int
	clears  int
	saveErr error
}

func (f *fakeSlot) Save(ctx context.Context, s Snapshot) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.snap = s
	f.has = true
	return nil
}

func (f *fakeSlot) Load(ctx context.Context) (Snapshot, bool, error) {
	return f.snap, f.has, nil
}

func (f *fakeSlot) Clear(ctx context.Context) error {
	f.clears++
	f.has = false
	return nil
}

type fakePipeline struct {
	submits   []outcome.Request
	autos     []outcome.Request
	submitErr error
	autoErr   error
}

func (f *fakePipeline) Submit(ctx context.Context, req outcome.Request) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submits = append(f.submits, req)
	return nil
}

func (f *fakePipeline) SubmitAuto(ctx context.Context, req outcome.Request) error {
	if f.autoErr != nil {
		return f.autoErr
	}
	f.autos = append(f.autos, req)
	return nil
}

type fakeGuard struct {
	held     bool
	acquires int
	releases int
	denied   bool
}

func (f *fakeGuard) Acquire(ctx context.Context) (bool, error) {
	f.acquires++
	if f.denied {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeGuard) Release(ctx context.Context) error {
	f.releases++
	f.held = false
	return nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMachine() (*Machine, *fakeSlot, *fakePipeline, *fakeGuard, *testClock) {
	slot := &fakeSlot{}
	pipe := &fakePipeline{}
	guard := &fakeGuard{}
	clk := &testClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	m := NewMachine("agent-1", slot, dialer.TelURIDialer{}, pipe, guard, nil)
	m.clock = clk.Now
	return m, slot, pipe, guard, clk
}

func testLead() leads.Lead {
	return leads.Lead{ID: "l1", Name: "Asha", Phone: "9876543210", Status: leads.StatusPending}
}

func TestDial_PersistsSnapshotAndHandsOff(t *testing.T) {
	m, slot, _, guard, clk := newTestMachine()

	h, err := m.Dial(context.Background(), testLead())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if h.URI != "tel:9876543210" {
		t.Fatalf("unexpected handoff uri %q", h.URI)
	}
	if m.Current().State != StateCalling {
		t.Fatalf("expected calling state")
	}
	if !slot.has || slot.snap.LeadID != "l1" || slot.snap.State != StateCalling {
		t.Fatalf("snapshot not persisted: %+v", slot.snap)
	}
	if slot.snap.StartMS != clk.now.UnixMilli() {
		t.Fatalf("snapshot start %d, want %d", slot.snap.StartMS, clk.now.UnixMilli())
	}
	if !guard.held {
		t.Fatalf("guard not acquired")
	}
}

func TestDial_RefusedWhileBusy(t *testing.T) {
	m, _, _, _, _ := newTestMachine()

	if _, err := m.Dial(context.Background(), testLead()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := m.Dial(context.Background(), testLead()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestDial_RefusedWhenGuardDenied(t *testing.T) {
	m, _, _, guard, _ := newTestMachine()
	guard.denied = true

	if _, err := m.Dial(context.Background(), testLead()); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if m.Current().State != StateIdle {
		t.Fatalf("machine must stay idle")
	}
}

func TestEnd_GhostCallAutoResolves(t *testing.T) {
	m, slot, pipe, guard, clk := newTestMachine()

	if _, err := m.Dial(context.Background(), testLead()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	clk.Advance(7 * time.Second)

	res, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Transitioned || !res.AutoResolved {
		t.Fatalf("expected auto-resolved transition, got %+v", res)
	}
	if res.DurationLabel != "0m 7s" {
		t.Fatalf("duration label %q, want %q", res.DurationLabel, "0m 7s")
	}
	if len(pipe.autos) != 1 {
		t.Fatalf("expected one system write, got %d", len(pipe.autos))
	}
	auto := pipe.autos[0]
	if auto.Status != leads.StatusNotReceived || auto.Notes != AutoRejectNote {
		t.Fatalf("unexpected system outcome: %+v", auto)
	}
	if m.Current().State != StateIdle {
		t.Fatalf("ghost call must land back on idle")
	}
	if slot.has {
		t.Fatalf("slot must be cleared on idle")
	}
	if guard.held {
		t.Fatalf("guard must be released on idle")
	}
}

func TestEnd_GhostCallReturnsIdleEvenIfWriteFails(t *testing.T) {
	m, _, pipe, _, clk := newTestMachine()
	pipe.autoErr = errors.New("db down")

	if _, err := m.Dial(context.Background(), testLead()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	clk.Advance(3 * time.Second)

	res, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("auto-resolve failure must not surface: %v", err)
	}
	if !res.AutoResolved {
		t.Fatalf("expected auto-resolve, got %+v", res)
	}
	if m.Current().State != StateIdle {
		t.Fatalf("machine must go idle despite the failed write")
	}
}

func TestEnd_LongCallAwaitsOutcome(t *testing.T) {
	m, slot, pipe, _, clk := newTestMachine()

	if _, err := m.Dial(context.Background(), testLead()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	clk.Advance(95 * time.Second)

	res, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Transitioned || res.AutoResolved {
		t.Fatalf("expected plain transition, got %+v", res)
	}
	if res.DurationLabel != "1m 35s" {
		t.Fatalf("duration label %q, want %q", res.DurationLabel, "1m 35s")
	}
	if len(pipe.autos) != 0 || len(pipe.submits) != 0 {
		t.Fatalf("no write may happen before the agent submits")
	}

	v := m.Current()
	if v.State != StateOutcome {
		t.Fatalf("expected outcome state, got %q", v.State)
	}
	if v.Lead == nil || v.Lead.ID != "l1" {
		t.Fatalf("lead must be retained for the outcome form")
	}
	if v.DurationLabel != "1m 35s" {
		t.Fatalf("frozen duration %q, want %q", v.DurationLabel, "1m 35s")
	}
	if slot.has {
		t.Fatalf("slot must not outlive the calling state")
	}
}

func TestEnd_DuplicateSignalsCollapse(t *testing.T) {
	m, _, pipe, _, clk := newTestMachine()

	if _, err := m.Dial(context.Background(), testLead()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	clk.Advance(5 * time.Second)

	first, _ := m.End(context.Background())
	second, _ := m.End(context.Background())
	third, _ := m.End(context.Background())
	if !first.Transitioned {
		t.Fatalf("first signal must transition")
	}
	if second.Transitioned || third.Transitioned {
		t.Fatalf("duplicate end signals must be no-ops")
	}
	if len(pipe.autos) != 1 {
		t.Fatalf("exactly one system write expected, got %d", len(pipe.autos))
	}
}

func TestSubmit_WritesAndReturnsIdle(t *testing.T) {
	m, _, pipe, guard, clk := newTestMachine()

	if _, err := m.Dial(context.Background(), testLead()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	clk.Advance(120 * time.Second)
	if _, err := m.End(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	err := m.Submit(context.Background(), leads.StatusInterested, "asked for a callback with pricing", "", "agent")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(pipe.submits) != 1 {
		t.Fatalf("expected one submission, got %d", len(pipe.submits))
	}
	req := pipe.submits[0]
	if req.LeadID != "l1" || req.Duration != "2m 0s" || req.DurationSeconds != 120 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if m.Current().State != StateIdle {
		t.Fatalf("successful submit must land on idle")
	}
	if guard.held {
		t.Fatalf("guard must be released after submit")
	}
}

func TestSubmit_FailureRetainsOutcomeState(t *testing.T) {
	m, _, pipe, _, clk := newTestMachine()
	pipe.submitErr = errors.New("db down")

	if _, err := m.Dial(context.Background(), testLead()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	clk.Advance(90 * time.Second)
	if _, err := m.End(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if err := m.Submit(context.Background(), leads.StatusComplete, "closed the account review", "", "agent"); err == nil {
		t.Fatalf("expected submit error")
	}
	v := m.Current()
	if v.State != StateOutcome {
		t.Fatalf("failed submit must retain the outcome form, got %q", v.State)
	}
	if v.DurationLabel != "1m 30s" {
		t.Fatalf("frozen duration lost: %q", v.DurationLabel)
	}
}

func TestSubmit_RequiresPendingOutcome(t *testing.T) {
	m, _, _, _, _ := newTestMachine()
	err := m.Submit(context.Background(), leads.StatusComplete, "note", "", "agent")
	if !errors.Is(err, ErrNoPendingOutcome) {
		t.Fatalf("expected ErrNoPendingOutcome, got %v", err)
	}
}

func TestAbandon_DiscardsWithoutWrite(t *testing.T) {
	m, _, pipe, _, clk := newTestMachine()

	if _, err := m.Dial(context.Background(), testLead()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	clk.Advance(30 * time.Second)
	if _, err := m.End(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if err := m.Abandon(context.Background()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(pipe.submits) != 0 || len(pipe.autos) != 0 {
		t.Fatalf("abandon must not write")
	}
	if m.Current().State != StateIdle {
		t.Fatalf("abandon must return to idle")
	}
}

func TestRestore_ReinstatesCallingWithOriginalStart(t *testing.T) {
	m, slot, pipe, _, clk := newTestMachine()

	start := clk.now.Add(-40 * time.Second)
	slot.snap = Snapshot{StartMS: start.UnixMilli(), State: StateCalling, LeadID: "l1"}
	slot.has = true

	finder := finderFor(testLead())
	ok, err := m.Restore(context.Background(), finder)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ok {
		t.Fatalf("expected restore")
	}

	v := m.Current()
	if v.State != StateCalling {
		t.Fatalf("expected calling state, got %q", v.State)
	}
	if v.Lead == nil || v.Lead.Name != "Asha" {
		t.Fatalf("lead not resolved from the snapshot store")
	}
	if v.DurationSecs != 40 {
		t.Fatalf("elapsed must span the interruption, got %d", v.DurationSecs)
	}

	// The eventual end signal works exactly as if the process never died.
	clk.Advance(60 * time.Second)
	res, err := m.End(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.DurationLabel != "1m 40s" {
		t.Fatalf("duration label %q, want %q", res.DurationLabel, "1m 40s")
	}
	if len(pipe.autos) != 0 {
		t.Fatalf("a 100s restored call must not auto-resolve")
	}
}

func TestRestore_AbsentSlotLeavesIdle(t *testing.T) {
	m, _, _, _, _ := newTestMachine()

	ok, err := m.Restore(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ok || m.Current().State != StateIdle {
		t.Fatalf("absent slot must leave the machine idle")
	}
}

func TestReset_ClearsAnyState(t *testing.T) {
	m, slot, _, guard, _ := newTestMachine()

	if _, err := m.Dial(context.Background(), testLead()); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	m.Reset(context.Background())

	if m.Current().State != StateIdle {
		t.Fatalf("reset must return to idle")
	}
	if slot.has || guard.held {
		t.Fatalf("reset must clear slot and guard")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		secs int
		want string
	}{
		{0, "0m 0s"}, {7, "0m 7s"}, {60, "1m 0s"}, {95, "1m 35s"}, {200, "3m 20s"}, {-5, "0m 0s"},
	}
	for _, tc := range cases {
		if got := FormatDuration(tc.secs); got != tc.want {
			t.Fatalf("FormatDuration(%d) = %q, want %q", tc.secs, got, tc.want)
		}
	}
}

type staticFinder map[string]leads.Lead

func (f staticFinder) FindByID(id string) (leads.Lead, bool) {
	l, ok := f[id]
	return l, ok
}

func finderFor(ls ...leads.Lead) staticFinder {
	f := make(staticFinder, len(ls))
	for _, l := range ls {
		f[l.ID] = l
	}
	return f
}
