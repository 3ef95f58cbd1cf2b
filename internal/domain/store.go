package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// PropositionStore persists propositions. Records are append-only: nothing is
// ever deleted, and the only mutations are pool-total accumulation (performed
// by StakeStore.Place) and the one-way resolved flip.
type PropositionStore interface {
	// Create assigns the next id from the store's monotonic sequence and
	// persists the proposition. The stored record is returned.
	Create(ctx context.Context, p Proposition) (Proposition, error)
	GetByID(ctx context.Context, id int64) (Proposition, error)
	ListByCreator(ctx context.Context, creator string) ([]Proposition, error)
	// ListEndedUnresolved returns propositions whose deadline is at or before
	// now and that have not been resolved, ordered by deadline.
	ListEndedUnresolved(ctx context.Context, now time.Time, limit int) ([]Proposition, error)
	// MarkResolved flips the resolved flag and records the verdict. It fails
	// with ErrAlreadyResolved if the flag was already set and ErrNotFound if
	// the id is unknown; the flip is conditional so concurrent resolvers
	// cannot both succeed.
	MarkResolved(ctx context.Context, id int64, verdict bool, at time.Time) error
	Count(ctx context.Context) (int64, error)
}

// StakeStore persists stakes. Stakes are append-only; the claimed flag is the
// only mutable field.
type StakeStore interface {
	// Place appends the stake and adds its amount to the matching pool total
	// of its proposition in a single atomic step, so totals and stake rows
	// can never diverge. The stored stake (with assigned id) is returned.
	Place(ctx context.Context, s Stake) (Stake, error)
	// ListByProposition returns all stakes for a proposition in insertion
	// order.
	ListByProposition(ctx context.Context, propositionID int64) ([]Stake, error)
	// ListByStaker returns the staker's positions within a proposition in
	// insertion order.
	ListByStaker(ctx context.Context, propositionID int64, staker string) ([]Stake, error)
	// MarkClaimed flips claimed=true on the given stakes and returns the ids
	// it actually flipped: stakes already claimed are skipped, not failed, so
	// concurrent claims settle to exactly one payer.
	MarkClaimed(ctx context.Context, propositionID int64, stakeIDs []int64) ([]int64, error)
	// UnmarkClaimed reverses MarkClaimed for a failed fund release. It is the
	// compensating action of the claim transaction and must only be called
	// with ids returned by the matching MarkClaimed.
	UnmarkClaimed(ctx context.Context, propositionID int64, stakeIDs []int64) error
}

// ResolutionStore persists resolution records, append-only.
type ResolutionStore interface {
	Append(ctx context.Context, r Resolution) error
	GetByProposition(ctx context.Context, propositionID int64) (Resolution, error)
	ListRecent(ctx context.Context, limit int) ([]Resolution, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	// ListBefore returns entries created strictly before the cutoff, for
	// archival.
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
}
