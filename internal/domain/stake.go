package domain

import "time"

// Stake is a recorded wager by one identity on one side of one proposition.
// Amount is immutable once recorded; Claimed flips false→true exactly once
// when the stake is paid out and never reverses (except as a compensating
// rollback inside a failed claim, which never becomes visible).
type Stake struct {
	ID            int64     `json:"id"`
	PropositionID int64     `json:"proposition_id"`
	Staker        string    `json:"staker"`
	Side          Side      `json:"side"`
	Amount        int64     `json:"amount"`
	Claimed       bool      `json:"claimed"`
	PlacedAt      time.Time `json:"placed_at"`
}
