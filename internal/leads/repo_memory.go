package leads

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory repository used by tests and early development.
// It mirrors the Postgres ordering contract (created_at DESC, ties broken by
// ascending id).
type MemoryRepo struct {
	mu     sync.Mutex
	rows   []Lead
	config map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{config: make(map[string]string)}
}

func (r *MemoryRepo) FetchAll(ctx context.Context) ([]Lead, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Lead, len(r.rows))
	copy(out, r.rows)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) Insert(ctx context.Context, l Lead) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, l)
	return nil
}

func (r *MemoryRepo) InsertBatch(ctx context.Context, rows []Lead) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, id string, f UpdateFields) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.rows {
		if r.rows[i].ID != id {
			continue
		}
		if f.Status != nil {
			r.rows[i].Status = *f.Status
		}
		if f.Notes != nil {
			r.rows[i].Notes = *f.Notes
		}
		if f.Duration != nil {
			r.rows[i].Duration = *f.Duration
		}
		if f.Timestamp != nil {
			r.rows[i].Timestamp = *f.Timestamp
		}
		if f.Name != nil {
			r.rows[i].Name = *f.Name
		}
		return nil
	}
	return ErrNotFound
}

func (r *MemoryRepo) ResetToPending(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.rows {
		if r.rows[i].ID != id {
			continue
		}
		r.rows[i].Status = StatusPending
		r.rows[i].Notes = ""
		r.rows[i].Duration = ""
		r.rows[i].Timestamp = Lead{}.Timestamp
		return nil
	}
	return ErrNotFound
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) DeleteByStatus(ctx context.Context, s Status) (int64, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.rows[:0]
	var n int64
	for _, l := range r.rows {
		if l.Status == s {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.rows = kept
	return n, nil
}

func (r *MemoryRepo) DeleteAll(ctx context.Context) (int64, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.rows))
	r.rows = nil
	return n, nil
}

func (r *MemoryRepo) GetConfig(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.config[key]
	return v, ok, nil
}

func (r *MemoryRepo) SetConfig(ctx context.Context, key, value string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config[key] = value
	return nil
}
