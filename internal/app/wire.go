package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/wagerbook/internal/blob/s3"
	"github.com/alanyoungcy/wagerbook/internal/bus"
	"github.com/alanyoungcy/wagerbook/internal/cache/redis"
	"github.com/alanyoungcy/wagerbook/internal/config"
	"github.com/alanyoungcy/wagerbook/internal/domain"
	"github.com/alanyoungcy/wagerbook/internal/escrow"
	"github.com/alanyoungcy/wagerbook/internal/identity"
	"github.com/alanyoungcy/wagerbook/internal/ledger"
	"github.com/alanyoungcy/wagerbook/internal/notify"
	"github.com/alanyoungcy/wagerbook/internal/store/memory"
	"github.com/alanyoungcy/wagerbook/internal/store/postgres"
	"github.com/alanyoungcy/wagerbook/internal/store/sqlite"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	Propositions domain.PropositionStore
	Stakes       domain.StakeStore
	Resolutions  domain.ResolutionStore
	Audit        domain.AuditStore
	Escrow       domain.Escrow

	// Coordination
	Locks       domain.LockManager
	SignalBus   domain.SignalBus
	OddsCache   domain.OddsCache   // nil without redis
	RateLimiter domain.RateLimiter // nil without redis

	// Identity
	Auth domain.Authorizer

	// Core service
	Ledger *ledger.Service

	// Blob storage (archive modes only)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsS3 reports whether the mode exports cold archives.
func needsS3(cfg *config.Config) bool {
	switch strings.ToLower(cfg.Mode) {
	case "archive":
		return true
	case "full":
		return cfg.Archive.Enabled
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Storage ---
	switch strings.ToLower(cfg.Storage.Driver) {
	case "postgres":
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Propositions = postgres.NewPropositionStore(pool)
		deps.Stakes = postgres.NewStakeStore(pool)
		deps.Resolutions = postgres.NewResolutionStore(pool)
		deps.Audit = postgres.NewAuditStore(pool)
		deps.Escrow = postgres.NewBalanceStore(pool)

	case "sqlite":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: sqlite: %w", err)
		}
		closers = append(closers, func() { _ = store.Close() })

		deps.Propositions = store
		deps.Stakes = store
		deps.Resolutions = store
		deps.Audit = store
		deps.Escrow = store

	case "memory":
		store := memory.New()
		deps.Propositions = store
		deps.Stakes = store
		deps.Resolutions = store
		deps.Audit = store
		deps.Escrow = escrow.NewMemory()

	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown storage driver %q", cfg.Storage.Driver)
	}

	// --- Redis (locks, bus, odds cache, rate limiter) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Locks = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.OddsCache = redis.NewOddsCache(redisClient, redis.DefaultOddsTTL)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	} else {
		// In-process fallback: fine for a single instance, not for a fleet.
		deps.Locks = ledger.NewKeyLock()
		deps.SignalBus = bus.NewMemory()
	}

	// --- Identity ---
	deps.Auth = identity.NewAllowlist(cfg.Resolver.Resolvers, cfg.Resolver.Admins)

	// --- Ledger ---
	deps.Ledger = ledger.NewService(ledger.Deps{
		Propositions: deps.Propositions,
		Stakes:       deps.Stakes,
		Resolutions:  deps.Resolutions,
		Audit:        deps.Audit,
		Escrow:       deps.Escrow,
		Locks:        deps.Locks,
		Auth:         deps.Auth,
		Bus:          deps.SignalBus,
		Odds:         deps.OddsCache,
	}, ledger.Config{
		MinStake:    cfg.Ledger.MinStake,
		FeeRateBps:  cfg.Ledger.FeeRateBps,
		FeeAccount:  cfg.Ledger.FeeAccount,
		MaxDuration: cfg.Ledger.MaxDuration.Duration,
	}, logger)

	// --- S3 blob storage (archive modes only) ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.Resolutions, deps.Stakes, deps.Audit)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
