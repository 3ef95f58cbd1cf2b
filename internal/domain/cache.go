package domain

import (
	"context"
	"time"
)

// OddsCache provides fast access to live odds for hot propositions.
type OddsCache interface {
	Set(ctx context.Context, odds Odds) error
	Get(ctx context.Context, propositionID int64) (Odds, error)
	Invalidate(ctx context.Context, propositionID int64) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides mutual exclusion keyed by an arbitrary string. The
// ledger serialises mutations per proposition through it.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry read from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub fan-out of ledger events and durable, ordered
// streams (used for the operator-fed verdict queue).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
