package queue

import (
	"testing"

	"lead-console/internal/leads"
)

func lead(id string, st leads.Status) leads.Lead {
	return leads.Lead{ID: id, Name: "L" + id, Phone: "987654321" + id[:1], Status: st}
}

func TestCompute_PartitionsByStatus(t *testing.T) {
	snap := []leads.Lead{
		lead("1", leads.StatusPending),
		lead("2", leads.StatusInterested),
		lead("3", leads.StatusCallBack),
		lead("4", leads.StatusPending),
		lead("5", leads.StatusComplete),
		lead("6", leads.StatusInvalid),
	}

	v := Compute(snap, 7)

	pool, interested, callBack := v.Counts()
	if pool != 2 || interested != 1 || callBack != 1 {
		t.Fatalf("unexpected counts: pool=%d interested=%d callback=%d", pool, interested, callBack)
	}
	if v.Revision != 7 {
		t.Fatalf("expected revision 7, got %d", v.Revision)
	}
	// Store order preserved: pool head is the first pending in the snapshot.
	next, ok := v.Next()
	if !ok || next.ID != "1" {
		t.Fatalf("expected next lead 1, got %+v ok=%v", next, ok)
	}
}

func TestCompute_StatusChangeMovesLeadBetweenViews(t *testing.T) {
	snap := []leads.Lead{lead("1", leads.StatusPending)}
	before := Compute(snap, 1)
	if pool, _, _ := before.Counts(); pool != 1 {
		t.Fatalf("expected 1 in pool, got %d", pool)
	}

	snap[0].Status = leads.StatusInterested
	after := Compute(snap, 2)

	pool, interested, _ := after.Counts()
	if pool != 0 {
		t.Fatalf("lead should have left the fresh pool, pool=%d", pool)
	}
	if interested != 1 {
		t.Fatalf("lead should appear in interested view, got %d", interested)
	}
	if _, ok := after.Next(); ok {
		t.Fatalf("empty pool must have no next lead")
	}
}
