package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/wagerbook/internal/notify"
	"github.com/alanyoungcy/wagerbook/internal/server"
	"github.com/alanyoungcy/wagerbook/internal/server/handler"
	"github.com/alanyoungcy/wagerbook/internal/server/ws"
	"github.com/alanyoungcy/wagerbook/internal/settle"
)

// ServerMode runs the HTTP/WebSocket API and the notification listener.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startNotifyListener(ctx, g, deps)
	return g.Wait()
}

// SettleMode runs only the settlement worker, consuming the durable verdict
// stream and resolving ended propositions.
func (a *App) SettleMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting settle mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startSettleWorker(ctx, g, deps)
	a.startNotifyListener(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs only the cold-storage archiver on its cron schedule.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiveRunner(ctx, g, deps)
	return g.Wait()
}

// FullMode runs every subsystem: the API server, the settlement worker, the
// archiver (when enabled), and the notification listener.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startSettleWorker(ctx, g, deps)
	if a.cfg.Archive.Enabled {
		a.startArchiveRunner(ctx, g, deps)
	}
	a.startNotifyListener(ctx, g, deps)
	return g.Wait()
}

// startHTTPServer registers the API server and its WebSocket hub on the
// errgroup. It is a no-op when the server is disabled in config.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled by config")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		err := hub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(a.logger),
		Propositions: handler.NewPropositionHandler(deps.Ledger, a.logger),
		Stakes:       handler.NewStakeHandler(deps.Ledger, a.logger),
		Settlement:   handler.NewSettlementHandler(deps.Ledger, deps.Auth, deps.SignalBus, a.logger),
		Escrow:       handler.NewEscrowHandler(deps.Ledger, a.logger),
		Audit:        handler.NewAuditHandler(deps.Audit, deps.Auth, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		APIKeyHash:  a.cfg.Server.APIKeyHash,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startSettleWorker registers the settlement worker, fed from the durable
// verdict stream on the signal bus.
func (a *App) startSettleWorker(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	resolver := settle.NewStreamResolver(deps.SignalBus, settle.VerdictStream)
	worker := settle.NewWorker(deps.Propositions, deps.Ledger, resolver, settle.WorkerConfig{
		Identity:   a.cfg.Resolver.WorkerIdentity,
		Interval:   a.cfg.Resolver.SweepInterval.Duration,
		BatchLimit: a.cfg.Resolver.BatchLimit,
	}, a.logger)

	g.Go(func() error {
		err := worker.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

// startArchiveRunner registers the cold-storage archive cron.
func (a *App) startArchiveRunner(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		a.logger.WarnContext(ctx, "archive requested but no archiver wired; skipping")
		return
	}

	runner := settle.NewArchiveRunner(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	cron := a.cfg.Archive.Cron
	g.Go(func() error {
		err := runner.RunCron(ctx, cron)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

// startNotifyListener bridges resolution and claim events to the configured
// notification channels. Skipped when no senders are configured.
func (a *App) startNotifyListener(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Notifier == nil || !deps.Notifier.HasSenders() {
		return
	}

	listener := notify.NewListener(deps.Notifier, deps.SignalBus, a.logger)
	g.Go(func() error {
		err := listener.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}
