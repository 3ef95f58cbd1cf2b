package domain

import "time"

// Status is the lifecycle state of a proposition. "Ended" is never persisted;
// it is derived from the clock and the resolved flag via Proposition.Status.
type Status string

const (
	StatusOpen     Status = "open"
	StatusEnded    Status = "ended"
	StatusResolved Status = "resolved"
)

// Side is the side of a binary proposition a stake is placed on.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is one of the two recognised sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Wins reports whether a stake on this side pays out under the given verdict.
func (s Side) Wins(verdict bool) bool {
	if verdict {
		return s == SideYes
	}
	return s == SideNo
}

// MaxDuration is the longest allowed open window for a proposition.
const MaxDuration = 365 * 24 * time.Hour

// Proposition is a single binary-outcome question with a deadline and two
// stake pools. Amounts are integer currency units ("cents"). Propositions are
// never deleted; they remain as a permanent audit record after resolution.
type Proposition struct {
	ID         int64      `json:"id"`
	Question   string     `json:"question"`
	Category   string     `json:"category"`
	Creator    string     `json:"creator"`
	YesTotal   int64      `json:"yes_total"`
	NoTotal    int64      `json:"no_total"`
	Resolved   bool       `json:"resolved"`
	Verdict    bool       `json:"verdict"`
	CreatedAt  time.Time  `json:"created_at"`
	Deadline   time.Time  `json:"deadline"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Status derives the lifecycle state at the given instant. It is a pure
// function of the clock so stale "ended" flags cannot exist.
func (p Proposition) Status(now time.Time) Status {
	if p.Resolved {
		return StatusResolved
	}
	if now.Before(p.Deadline) {
		return StatusOpen
	}
	return StatusEnded
}

// TotalPool is the combined amount staked on both sides.
func (p Proposition) TotalPool() int64 {
	return p.YesTotal + p.NoTotal
}

// WinningPool returns the pool on the side matching the verdict. Only
// meaningful once the proposition is resolved.
func (p Proposition) WinningPool() int64 {
	if p.Verdict {
		return p.YesTotal
	}
	return p.NoTotal
}

// Odds is a percentage split of the two pools.
type Odds struct {
	PropositionID int64 `json:"proposition_id"`
	YesShare      int64 `json:"yes_share"`
	NoShare       int64 `json:"no_share"`
	TotalPool     int64 `json:"total_pool"`
}

// CurrentOdds computes the live odds as integer percentages. An empty pool
// reports 50/50 by convention.
func (p Proposition) CurrentOdds() Odds {
	o := Odds{
		PropositionID: p.ID,
		YesShare:      50,
		NoShare:       50,
		TotalPool:     p.TotalPool(),
	}
	if o.TotalPool > 0 {
		o.YesShare = p.YesTotal * 100 / o.TotalPool
		o.NoShare = p.NoTotal * 100 / o.TotalPool
	}
	return o
}
