package domain

import "errors"

var (
	// ErrInvalidInput rejects a malformed open request (empty question,
	// non-positive or over-long duration).
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means the proposition id is unknown.
	ErrNotFound = errors.New("not found")

	// ErrMarketClosed rejects a stake outside the open window.
	ErrMarketClosed = errors.New("market closed")

	// ErrInvalidAmount rejects a non-positive or below-minimum stake.
	ErrInvalidAmount = errors.New("invalid stake amount")

	// ErrUnauthorized rejects a resolve or administrative call from a caller
	// that is not the designated resolver/administrator.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTooEarly rejects resolution before the deadline.
	ErrTooEarly = errors.New("too early to resolve")

	// ErrAlreadyResolved rejects a second resolution.
	ErrAlreadyResolved = errors.New("already resolved")

	// ErrNotResolved rejects a claim before resolution.
	ErrNotResolved = errors.New("not resolved")

	// ErrNoStakes means the claimant holds no positions on the proposition.
	ErrNoStakes = errors.New("no stakes")

	// ErrNothingToClaim means the claimant holds positions but none are
	// winning and unclaimed.
	ErrNothingToClaim = errors.New("nothing to claim")

	// ErrInsufficientFunds means an escrow debit exceeds the account balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrLockHeld means a per-proposition lock is already held.
	ErrLockHeld = errors.New("lock already held")

	// ErrRateLimited means the caller exceeded the API rate limit.
	ErrRateLimited = errors.New("rate limited")
)
