package domain

import "time"

// Resolution is the audit record emitted when a proposition is resolved. The
// pool totals are frozen at resolution time and copied here so settlement
// remains auditable even if downstream consumers only see this record.
type Resolution struct {
	PropositionID int64     `json:"proposition_id"`
	Verdict       bool      `json:"verdict"`
	YesTotal      int64     `json:"yes_total"`
	NoTotal       int64     `json:"no_total"`
	ResolvedBy    string    `json:"resolved_by"`
	ResolvedAt    time.Time `json:"resolved_at"`
}

// ClaimReceipt summarises a successful claim: which stakes were paid, the
// gross pool share, the platform fee withheld, and the net amount released.
type ClaimReceipt struct {
	ID            string    `json:"id"`
	PropositionID int64     `json:"proposition_id"`
	Staker        string    `json:"staker"`
	StakeIDs      []int64   `json:"stake_ids"`
	Gross         int64     `json:"gross"`
	Fee           int64     `json:"fee"`
	Net           int64     `json:"net"`
	ClaimedAt     time.Time `json:"claimed_at"`
}
