// Package memory implements the domain store interfaces with in-process
// maps. It backs tests and single-process deployments; its conditional
// resolve and claim flips mirror the SQL stores exactly so the ledger sees
// the same semantics regardless of driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// Store implements domain.PropositionStore, domain.StakeStore,
// domain.ResolutionStore, and domain.AuditStore over shared in-memory state.
type Store struct {
	mu sync.Mutex

	nextPropID  int64
	nextStakeID int64
	nextAuditID int64

	props       map[int64]*domain.Proposition
	stakes      map[int64][]*domain.Stake // proposition id -> insertion order
	resolutions map[int64]domain.Resolution
	audit       []domain.AuditEntry
}

// New creates an empty store.
func New() *Store {
	return &Store{
		props:       make(map[int64]*domain.Proposition),
		stakes:      make(map[int64][]*domain.Stake),
		resolutions: make(map[int64]domain.Resolution),
	}
}

// Create assigns the next id and persists the proposition.
func (s *Store) Create(_ context.Context, p domain.Proposition) (domain.Proposition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPropID++
	p.ID = s.nextPropID
	cp := p
	s.props[p.ID] = &cp
	return p, nil
}

// GetByID returns a copy of the proposition.
func (s *Store) GetByID(_ context.Context, id int64) (domain.Proposition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.props[id]
	if !ok {
		return domain.Proposition{}, fmt.Errorf("memory: proposition %d: %w", id, domain.ErrNotFound)
	}
	return *p, nil
}

// ListByCreator returns the creator's propositions ordered by id.
func (s *Store) ListByCreator(_ context.Context, creator string) ([]domain.Proposition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Proposition
	for _, p := range s.props {
		if p.Creator == creator {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListEndedUnresolved returns unresolved propositions past their deadline,
// ordered by deadline.
func (s *Store) ListEndedUnresolved(_ context.Context, now time.Time, limit int) ([]domain.Proposition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Proposition
	for _, p := range s.props {
		if !p.Resolved && !now.Before(p.Deadline) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkResolved flips the resolved flag exactly once.
func (s *Store) MarkResolved(_ context.Context, id int64, verdict bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.props[id]
	if !ok {
		return fmt.Errorf("memory: proposition %d: %w", id, domain.ErrNotFound)
	}
	if p.Resolved {
		return fmt.Errorf("memory: proposition %d: %w", id, domain.ErrAlreadyResolved)
	}
	p.Resolved = true
	p.Verdict = verdict
	t := at
	p.ResolvedAt = &t
	return nil
}

// Count returns the number of propositions.
func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.props)), nil
}

// Place appends the stake and bumps the matching pool total atomically.
func (s *Store) Place(_ context.Context, st domain.Stake) (domain.Stake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.props[st.PropositionID]
	if !ok {
		return domain.Stake{}, fmt.Errorf("memory: proposition %d: %w", st.PropositionID, domain.ErrNotFound)
	}

	s.nextStakeID++
	st.ID = s.nextStakeID
	cp := st
	s.stakes[st.PropositionID] = append(s.stakes[st.PropositionID], &cp)

	if st.Side == domain.SideYes {
		p.YesTotal += st.Amount
	} else {
		p.NoTotal += st.Amount
	}
	return st, nil
}

// ListByProposition returns all stakes in insertion order.
func (s *Store) ListByProposition(_ context.Context, propositionID int64) ([]domain.Stake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.stakes[propositionID]
	out := make([]domain.Stake, 0, len(list))
	for _, st := range list {
		out = append(out, *st)
	}
	return out, nil
}

// ListByStaker returns the staker's positions in insertion order.
func (s *Store) ListByStaker(_ context.Context, propositionID int64, staker string) ([]domain.Stake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Stake
	for _, st := range s.stakes[propositionID] {
		if st.Staker == staker {
			out = append(out, *st)
		}
	}
	return out, nil
}

// MarkClaimed flips claimed=true on still-unclaimed stakes and reports which
// ids it flipped.
func (s *Store) MarkClaimed(_ context.Context, propositionID int64, stakeIDs []int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[int64]bool, len(stakeIDs))
	for _, id := range stakeIDs {
		want[id] = true
	}

	var flipped []int64
	for _, st := range s.stakes[propositionID] {
		if want[st.ID] && !st.Claimed {
			st.Claimed = true
			flipped = append(flipped, st.ID)
		}
	}
	return flipped, nil
}

// UnmarkClaimed reverses MarkClaimed for a failed fund release.
func (s *Store) UnmarkClaimed(_ context.Context, propositionID int64, stakeIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[int64]bool, len(stakeIDs))
	for _, id := range stakeIDs {
		want[id] = true
	}
	for _, st := range s.stakes[propositionID] {
		if want[st.ID] {
			st.Claimed = false
		}
	}
	return nil
}

// Append stores a resolution record.
func (s *Store) Append(_ context.Context, r domain.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolutions[r.PropositionID] = r
	return nil
}

// GetByProposition returns the resolution record for a proposition.
func (s *Store) GetByProposition(_ context.Context, propositionID int64) (domain.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.resolutions[propositionID]
	if !ok {
		return domain.Resolution{}, fmt.Errorf("memory: resolution %d: %w", propositionID, domain.ErrNotFound)
	}
	return r, nil
}

// ListRecent returns the most recent resolutions, newest first.
func (s *Store) ListRecent(_ context.Context, limit int) ([]domain.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Resolution, 0, len(s.resolutions))
	for _, r := range s.resolutions {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResolvedAt.After(out[j].ResolvedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Log appends an audit entry.
func (s *Store) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextAuditID++
	s.audit = append(s.audit, domain.AuditEntry{
		ID:        s.nextAuditID,
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// List returns audit entries, newest first, with pagination.
func (s *Store) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.AuditEntry, len(s.audit))
	copy(out, s.audit)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// ListBefore returns audit entries created strictly before the cutoff.
func (s *Store) ListBefore(_ context.Context, before time.Time) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.AuditEntry
	for _, e := range s.audit {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Compile-time interface checks.
var (
	_ domain.PropositionStore = (*Store)(nil)
	_ domain.StakeStore       = (*Store)(nil)
	_ domain.ResolutionStore  = (*Store)(nil)
	_ domain.AuditStore       = (*Store)(nil)
)
