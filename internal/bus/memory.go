// Package bus provides the in-process SignalBus used by single-node
// deployments and tests. Multi-node deployments use the redis-backed bus.
package bus

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

const subscriberBuffer = 64

// Memory fans events out to in-process subscribers and keeps durable,
// ordered streams in memory. Slow subscribers drop messages rather than
// block publishers, matching the fire-and-forget pub/sub contract.
type Memory struct {
	mu      sync.Mutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
	nextID  map[string]int64
}

// NewMemory creates an empty bus.
func NewMemory() *Memory {
	return &Memory{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
		nextID:  make(map[string]int64),
	}
}

// Publish delivers the payload to every current subscriber of the channel.
func (m *Memory) Publish(_ context.Context, channel string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ch := range m.subs[channel] {
		select {
		case ch <- payload:
		default:
			// Subscriber is not keeping up; drop.
		}
	}
	return nil
}

// Subscribe registers a subscriber. The channel is closed and removed when
// ctx is cancelled.
func (m *Memory) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, subscriberBuffer)

	m.mu.Lock()
	m.subs[channel] = append(m.subs[channel], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subs[channel]
		for i, c := range subs {
			if c == ch {
				m.subs[channel] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
	}()

	return ch, nil
}

// StreamAppend appends the payload to the stream under a monotonically
// increasing id.
func (m *Memory) StreamAppend(_ context.Context, stream string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID[stream]++
	m.streams[stream] = append(m.streams[stream], domain.StreamMessage{
		ID:      strconv.FormatInt(m.nextID[stream], 10),
		Payload: payload,
	})
	return nil
}

// StreamRead returns up to count entries with ids strictly greater than
// lastID. An empty lastID reads from the beginning.
func (m *Memory) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	var after int64
	if lastID != "" {
		var err error
		after, err = strconv.ParseInt(lastID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bus: bad stream id %q: %w", lastID, domain.ErrInvalidInput)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.StreamMessage
	for _, msg := range m.streams[stream] {
		id, _ := strconv.ParseInt(msg.ID, 10, 64)
		if id <= after {
			continue
		}
		out = append(out, msg)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*Memory)(nil)
