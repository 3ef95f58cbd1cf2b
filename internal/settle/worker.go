// Package settle contains the background workers that close out the ledger:
// the settlement worker that resolves ended propositions from an operator
// verdict feed, and the archive runner that exports settled history to cold
// storage.
package settle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// ResolutionService is the slice of the ledger the worker needs.
type ResolutionService interface {
	Resolve(ctx context.Context, caller string, propositionID int64, verdict bool) (domain.Resolution, error)
}

// EndedSource lists propositions that are past their deadline and still
// unresolved.
type EndedSource interface {
	ListEndedUnresolved(ctx context.Context, now time.Time, limit int) ([]domain.Proposition, error)
}

// WorkerConfig tunes the settlement worker.
type WorkerConfig struct {
	// Identity is the resolver identity the worker acts as. It must be on
	// the resolver allowlist.
	Identity string
	// Interval is the sweep cadence. Zero means the 30s default.
	Interval time.Duration
	// BatchLimit bounds how many ended propositions one sweep examines.
	BatchLimit int
}

// Worker periodically sweeps ended propositions and resolves the ones its
// Resolver can supply a verdict for. Propositions without a verdict stay
// ended until one arrives; the sweep picks them up again next time.
type Worker struct {
	props    EndedSource
	svc      ResolutionService
	resolver domain.Resolver
	cfg      WorkerConfig
	logger   *slog.Logger
	clock    func() time.Time
}

// NewWorker creates a settlement worker.
func NewWorker(props EndedSource, svc ResolutionService, resolver domain.Resolver, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 100
	}
	return &Worker{
		props:    props,
		svc:      svc,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "settle_worker")),
		clock:    time.Now,
	}
}

// Run sweeps immediately, then on every tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("settlement worker started",
		slog.String("identity", w.cfg.Identity),
		slog.Duration("interval", w.cfg.Interval),
	)

	if err := w.Sweep(ctx); err != nil {
		w.logger.Error("settlement sweep failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("settlement worker stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sweep(ctx); err != nil {
				w.logger.Error("settlement sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep runs a single pass: list ended unresolved propositions, ask the
// resolver for a verdict on each, and resolve those that have one. A
// concurrent resolution by another party is benign and skipped.
func (w *Worker) Sweep(ctx context.Context) error {
	ended, err := w.props.ListEndedUnresolved(ctx, w.clock(), w.cfg.BatchLimit)
	if err != nil {
		return err
	}

	for _, p := range ended {
		verdict, ok, err := w.resolver.SupplyVerdict(ctx, p)
		if err != nil {
			w.logger.Error("verdict lookup failed",
				slog.Int64("proposition_id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !ok {
			continue
		}

		if _, err := w.svc.Resolve(ctx, w.cfg.Identity, p.ID, verdict); err != nil {
			if errors.Is(err, domain.ErrAlreadyResolved) {
				continue
			}
			w.logger.Error("resolve failed",
				slog.Int64("proposition_id", p.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		w.logger.Info("proposition settled",
			slog.Int64("proposition_id", p.ID),
			slog.Bool("verdict", verdict),
		)
	}
	return nil
}
