package history

import (
	"context"
	"sync"
)

// MemoryRepo is an append-only in-memory event store.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, leadID string) ([]Event, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, e := range r.events {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out, nil
}
