package settle

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// VerdictStream is the durable stream operators append verdicts to.
const VerdictStream = "verdicts"

// VerdictMessage is one operator-submitted verdict on the stream.
type VerdictMessage struct {
	PropositionID int64  `json:"proposition_id"`
	Verdict       bool   `json:"verdict"`
	Source        string `json:"source,omitempty"`
}

// SubmitVerdict appends a verdict to the durable stream for the settlement
// worker to pick up.
func SubmitVerdict(ctx context.Context, bus domain.SignalBus, msg VerdictMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("settle: marshal verdict %d: %w", msg.PropositionID, err)
	}
	if err := bus.StreamAppend(ctx, VerdictStream, data); err != nil {
		return fmt.Errorf("settle: submit verdict %d: %w", msg.PropositionID, err)
	}
	return nil
}

// StreamResolver implements domain.Resolver by consuming the verdict stream.
// It keeps a cursor into the stream and an in-memory index of every verdict
// seen so far; a verdict that arrives before its proposition ends is simply
// held until the sweep asks for it.
type StreamResolver struct {
	bus    domain.SignalBus
	stream string

	mu       sync.Mutex
	lastID   string
	verdicts map[int64]bool
}

// NewStreamResolver creates a StreamResolver over the given bus. An empty
// stream name means VerdictStream.
func NewStreamResolver(bus domain.SignalBus, stream string) *StreamResolver {
	if stream == "" {
		stream = VerdictStream
	}
	return &StreamResolver{
		bus:      bus,
		stream:   stream,
		verdicts: make(map[int64]bool),
	}
}

// SupplyVerdict drains new stream entries into the index, then reports the
// verdict for the proposition if one has been submitted. Malformed entries
// are skipped; a later well-formed entry for the same proposition wins.
func (r *StreamResolver) SupplyVerdict(ctx context.Context, p domain.Proposition) (bool, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.drainLocked(ctx); err != nil {
		return false, false, err
	}

	verdict, ok := r.verdicts[p.ID]
	return verdict, ok, nil
}

func (r *StreamResolver) drainLocked(ctx context.Context) error {
	for {
		msgs, err := r.bus.StreamRead(ctx, r.stream, r.lastID, 100)
		if err != nil {
			return fmt.Errorf("settle: read verdict stream: %w", err)
		}
		if len(msgs) == 0 {
			return nil
		}

		for _, msg := range msgs {
			r.lastID = msg.ID

			var v VerdictMessage
			if err := json.Unmarshal(msg.Payload, &v); err != nil {
				continue
			}
			r.verdicts[v.PropositionID] = v.Verdict
		}
	}
}

// Compile-time interface check.
var _ domain.Resolver = (*StreamResolver)(nil)
