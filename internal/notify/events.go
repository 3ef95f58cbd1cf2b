package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/ledger"
)

// Listener bridges ledger events from the signal bus to the notifier, so
// operators hear about resolutions and large claims without tailing logs.
type Listener struct {
	notifier *Notifier
	bus      domain.SignalBus
	logger   *slog.Logger
}

// NewListener creates a Listener over the given bus.
func NewListener(notifier *Notifier, bus domain.SignalBus, logger *slog.Logger) *Listener {
	return &Listener{
		notifier: notifier,
		bus:      bus,
		logger:   logger.With(slog.String("component", "notify_listener")),
	}
}

// eventEnvelope mirrors the ledger's published event shape.
type eventEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Run subscribes to the resolution and claim channels and forwards events
// until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	resolutions, err := l.bus.Subscribe(ctx, ledger.ChannelResolution)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", ledger.ChannelResolution, err)
	}
	claims, err := l.bus.Subscribe(ctx, ledger.ChannelClaim)
	if err != nil {
		return fmt.Errorf("notify: subscribe %s: %w", ledger.ChannelClaim, err)
	}

	l.logger.Info("notification listener started")

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("notification listener stopped")
			return ctx.Err()
		case data, ok := <-resolutions:
			if !ok {
				return nil
			}
			l.handleResolution(ctx, data)
		case data, ok := <-claims:
			if !ok {
				return nil
			}
			l.handleClaim(ctx, data)
		}
	}
}

func (l *Listener) handleResolution(ctx context.Context, data []byte) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}
	var res domain.Resolution
	if err := json.Unmarshal(env.Payload, &res); err != nil {
		return
	}

	verdict := "NO"
	if res.Verdict {
		verdict = "YES"
	}
	title := fmt.Sprintf("Proposition %d resolved %s", res.PropositionID, verdict)
	message := fmt.Sprintf(
		"Proposition %d resolved %s by %s.\nPools: YES %d / NO %d.",
		res.PropositionID, verdict, res.ResolvedBy, res.YesTotal, res.NoTotal,
	)
	if err := l.notifier.Notify(ctx, "resolution", title, message); err != nil {
		l.logger.Warn("resolution notification failed", slog.String("error", err.Error()))
	}
}

func (l *Listener) handleClaim(ctx context.Context, data []byte) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return
	}
	var receipt domain.ClaimReceipt
	if err := json.Unmarshal(env.Payload, &receipt); err != nil {
		return
	}

	title := fmt.Sprintf("Claim paid on proposition %d", receipt.PropositionID)
	message := fmt.Sprintf(
		"%s claimed %d stakes on proposition %d: gross %d, fee %d, net %d.",
		receipt.Staker, len(receipt.StakeIDs), receipt.PropositionID,
		receipt.Gross, receipt.Fee, receipt.Net,
	)
	if err := l.notifier.Notify(ctx, "claim", title, message); err != nil {
		l.logger.Warn("claim notification failed", slog.String("error", err.Error()))
	}
}
