// Package queue derives the three agent work queues from a lead snapshot.
//
// The views are pure filters. They hold no state of their own, so they can
// never go stale independently of the snapshot they were computed from; the
// caller recomputes them after every refresh.
package queue

import "lead-console/internal/leads"

// Views are the non-overlapping agent queues derived from one snapshot.
type Views struct {
	// FreshPool holds untouched leads in store order (newest first); the
	// dialing flow always takes the head.
	FreshPool []leads.Lead
	// Interested and CallBack are low-volume follow-up lists; the agent
	// picks from them explicitly.
	Interested []leads.Lead
	CallBack   []leads.Lead

	// Revision is the snapshot revision the views were computed from.
	Revision uint64
}

// Compute filters the snapshot into the three queues.
func Compute(snapshot []leads.Lead, revision uint64) Views {
	v := Views{Revision: revision}
	for _, l := range snapshot {
		switch l.Status {
		case leads.StatusPending:
			v.FreshPool = append(v.FreshPool, l)
		case leads.StatusInterested:
			v.Interested = append(v.Interested, l)
		case leads.StatusCallBack:
			v.CallBack = append(v.CallBack, l)
		}
	}
	return v
}

// Next returns the lead the fresh-pool flow should dial, if any.
func (v Views) Next() (leads.Lead, bool) {
	if len(v.FreshPool) == 0 {
		return leads.Lead{}, false
	}
	return v.FreshPool[0], true
}

// Counts reports the queue sizes for the session-start screen.
func (v Views) Counts() (pool, interested, callBack int) {
	return len(v.FreshPool), len(v.Interested), len(v.CallBack)
}
