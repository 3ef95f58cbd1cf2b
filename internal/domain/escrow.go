package domain

import "context"

// Escrow is the fund-custody primitive the ledger works against. Accounts are
// identified by opaque strings: staker addresses, per-proposition pool
// accounts, and the platform fee account. Each call is atomic; Transfer in
// particular must either move the full amount or leave both accounts
// untouched.
type Escrow interface {
	// Credit adds amount to the account, creating it if needed.
	Credit(ctx context.Context, account string, amount int64) error
	// Debit removes amount from the account. Fails with ErrInsufficientFunds
	// if the balance is lower than amount.
	Debit(ctx context.Context, account string, amount int64) error
	// Transfer atomically debits from and credits to.
	Transfer(ctx context.Context, from, to string, amount int64) error
	Balance(ctx context.Context, account string) (int64, error)
}

// Authorizer answers whether an identity may perform restricted operations.
type Authorizer interface {
	// CanResolve reports whether the identity is a designated resolver.
	CanResolve(identity string) bool
	// CanAdminister reports whether the identity may perform administrative
	// actions (escrow deposits, archival triggers).
	CanAdminister(identity string) bool
}

// Resolver supplies verdicts for ended propositions. Implementations may be
// manual queues, external oracles, or vote aggregators; the settlement worker
// does not care which.
type Resolver interface {
	// SupplyVerdict returns the verdict for the proposition if one is
	// available. ok=false means no verdict yet; the proposition stays ended.
	SupplyVerdict(ctx context.Context, p Proposition) (verdict bool, ok bool, err error)
}
