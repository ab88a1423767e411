package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Service is the typed facade over the lead store.
//
// It owns a read-mostly cached snapshot of the full lead book. Every mutation
// writes through to the repository and then refetches the snapshot; the
// snapshot carries a monotonic revision so readers can tell "my write landed,
// this is fresh" from "stale copy" deterministically. A failed write also
// triggers a refetch so the cache converges to ground truth instead of
// keeping an optimistic state.
type Service struct {
	repo Repository

	clock      func() time.Time
	randDigits func() string

	mu       sync.RWMutex
	snapshot []Lead
	revision uint64
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:       repo,
		clock:      time.Now,
		randDigits: func() string { return fmt.Sprintf("%04d", rand.IntN(10000)) },
	}
}

// Refresh refetches the full lead book and bumps the snapshot revision.
func (s *Service) Refresh(ctx context.Context) error {
	rows, err := s.repo.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	s.mu.Lock()
	s.snapshot = rows
	s.revision++
	s.mu.Unlock()
	return nil
}

// Snapshot returns the cached lead book and its revision. The slice is a copy;
// callers may not observe later refreshes through it.
func (s *Service) Snapshot() ([]Lead, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Lead, len(s.snapshot))
	copy(out, s.snapshot)
	return out, s.revision
}

func (s *Service) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// FindByID looks a lead up in the current snapshot.
func (s *Service) FindByID(id string) (Lead, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.snapshot {
		if l.ID == id {
			return l, true
		}
	}
	return Lead{}, false
}

/* ===================== INTAKE ===================== */

// Add validates and inserts a single candidate. Candidates that fail intake
// (wrong digit count, duplicate phone) are still inserted, force-classified
// StatusInvalid with an explanatory note, so nothing silently disappears.
func (s *Service) Add(ctx context.Context, c Candidate) (Lead, error) {
	rows, err := s.AddBatch(ctx, []Candidate{c})
	if err != nil {
		return Lead{}, err
	}
	return rows[0], nil
}

// AddBatch applies the same validation per candidate. Duplicate detection
// considers committed rows and earlier candidates within the same batch.
func (s *Service) AddBatch(ctx context.Context, cs []Candidate) ([]Lead, error) {
	if len(cs) == 0 {
		return nil, ErrInvalidArgument
	}

	existing, err := s.repo.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("intake: %w", err)
	}
	seen := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		if l.Status == StatusInvalid {
			continue
		}
		seen[l.Phone] = struct{}{}
	}

	now := s.clock().UTC()
	rows := make([]Lead, 0, len(cs))
	for _, c := range cs {
		l := Lead{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(c.Name),
			Phone:     CanonicalPhone(c.Phone),
			Status:    StatusPending,
			CreatedAt: now,
		}
		if l.Name == "" {
			l.Name = "User-" + s.randDigits()
		}

		switch {
		case len(l.Phone) != phoneLength:
			l.Status = StatusInvalid
			l.Notes = NoteInvalidLength
		default:
			if _, dup := seen[l.Phone]; dup {
				l.Status = StatusInvalid
				l.Notes = NoteDuplicate
			} else {
				seen[l.Phone] = struct{}{}
			}
		}
		rows = append(rows, l)
	}

	if err := s.repo.InsertBatch(ctx, rows); err != nil {
		// Converge the cache; the insert may have partially applied on
		// backends without batch atomicity.
		_ = s.Refresh(ctx)
		return nil, fmt.Errorf("intake insert: %w", err)
	}
	if err := s.Refresh(ctx); err != nil {
		return rows, err
	}
	return rows, nil
}

/* ===================== MUTATIONS ===================== */

// ApplyUpdate writes a partial update to one row and refetches the snapshot.
// The refresh is issued only after the write acknowledgment, never
// concurrently.
func (s *Service) ApplyUpdate(ctx context.Context, id string, f UpdateFields) error {
	if err := s.repo.Update(ctx, id, f); err != nil {
		_ = s.Refresh(ctx)
		return err
	}
	return s.Refresh(ctx)
}

func (s *Service) ResetToPending(ctx context.Context, id string) error {
	if err := s.repo.ResetToPending(ctx, id); err != nil {
		_ = s.Refresh(ctx)
		return err
	}
	return s.Refresh(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		_ = s.Refresh(ctx)
		return err
	}
	return s.Refresh(ctx)
}

func (s *Service) DeleteByStatus(ctx context.Context, st Status) (int64, error) {
	n, err := s.repo.DeleteByStatus(ctx, st)
	if refreshErr := s.Refresh(ctx); err == nil {
		err = refreshErr
	}
	return n, err
}

// ClearAll wipes the entire lead book. Owner-only, guarded at the transport
// layer.
func (s *Service) ClearAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAll(ctx)
	if refreshErr := s.Refresh(ctx); err == nil {
		err = refreshErr
	}
	return n, err
}

/* ===================== PINS ===================== */

const pinsConfigKey = "passwords"

func (s *Service) GetPINs(ctx context.Context) (PINs, error) {
	raw, ok, err := s.repo.GetConfig(ctx, pinsConfigKey)
	if err != nil {
		return PINs{}, err
	}
	if !ok {
		return DefaultPINs(), nil
	}
	var p PINs
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return DefaultPINs(), nil
	}
	if p.Admin == "" || p.Agent == "" {
		return DefaultPINs(), nil
	}
	return p, nil
}

func (s *Service) SetPINs(ctx context.Context, p PINs) error {
	if p.Admin == "" || p.Agent == "" {
		return ErrInvalidArgument
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.repo.SetConfig(ctx, pinsConfigKey, string(raw))
}
