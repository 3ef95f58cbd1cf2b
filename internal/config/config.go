// Package config defines the top-level configuration for the wagerbook
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by WAGERBOOK_* environment variables.
type Config struct {
	Ledger   LedgerConfig   `toml:"ledger"`
	Resolver ResolverConfig `toml:"resolver"`
	Storage  StorageConfig  `toml:"storage"`
	Postgres PostgresConfig `toml:"postgres"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// LedgerConfig holds the economic parameters of the wagering ledger.
type LedgerConfig struct {
	// MinStake is the smallest accepted stake, in integer currency units.
	MinStake int64 `toml:"min_stake"`
	// FeeRateBps is the platform fee in basis points withheld from gross
	// payouts at claim time.
	FeeRateBps int64 `toml:"fee_rate_bps"`
	// FeeAccount is the escrow account accumulating platform fees.
	FeeAccount string `toml:"fee_account"`
	// MaxDuration caps the open window of new propositions.
	MaxDuration duration `toml:"max_duration"`
}

// ResolverConfig designates the identities that may resolve propositions and
// administer escrow, plus the settlement worker parameters.
type ResolverConfig struct {
	// Resolvers are EVM addresses allowed to resolve propositions.
	Resolvers []string `toml:"resolvers"`
	// Admins are EVM addresses allowed to credit escrow accounts. Resolvers
	// are implicitly admins.
	Admins []string `toml:"admins"`
	// WorkerIdentity is the address the settlement worker resolves as. It
	// must be in Resolvers for automatic settlement to succeed.
	WorkerIdentity string `toml:"worker_identity"`
	// SweepInterval is how often the worker scans for ended propositions.
	SweepInterval duration `toml:"sweep_interval"`
	// BatchLimit caps propositions examined per sweep.
	BatchLimit int `toml:"batch_limit"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Driver is one of "postgres", "sqlite", or "memory".
	Driver string `toml:"driver"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// SQLiteConfig holds parameters for the embedded SQLite backend.
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// RedisConfig holds Redis connection parameters. When disabled, locking and
// the signal bus fall back to in-process implementations and the odds cache
// and API rate limiting are skipped.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for cold archives.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the cold-storage export of settled propositions and
// audit rows. Archival copies data out; it never deletes ledger rows.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards all API routes when set. APIKeyHash (bcrypt) takes
	// precedence so deployments can avoid plaintext keys in config.
	APIKey     string `toml:"api_key"`
	APIKeyHash string `toml:"api_key_hash"`
	// RateLimit caps requests per caller per RateWindow. Zero disables
	// rate limiting. Requires redis.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			MinStake:    100,
			FeeRateBps:  200,
			FeeAccount:  "fees",
			MaxDuration: duration{365 * 24 * time.Hour},
		},
		Resolver: ResolverConfig{
			SweepInterval: duration{30 * time.Second},
			BatchLimit:    100,
		},
		Storage: StorageConfig{
			Driver: "postgres",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "wagerbook",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		SQLite: SQLiteConfig{
			Path: "wagerbook.db",
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "wagerbook-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Cron:          "0 3 1 * *",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"resolution", "claim", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"settle":  true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validDrivers enumerates the accepted values for StorageConfig.Driver.
var validDrivers = map[string]bool{
	"postgres": true,
	"sqlite":   true,
	"memory":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, settle, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Ledger
	if c.Ledger.MinStake < 1 {
		errs = append(errs, "ledger: min_stake must be >= 1")
	}
	if c.Ledger.FeeRateBps < 0 || c.Ledger.FeeRateBps > 10_000 {
		errs = append(errs, fmt.Sprintf("ledger: fee_rate_bps must be 0-10000, got %d", c.Ledger.FeeRateBps))
	}
	if c.Ledger.FeeAccount == "" {
		errs = append(errs, "ledger: fee_account must not be empty")
	}
	if c.Ledger.MaxDuration.Duration <= 0 {
		errs = append(errs, "ledger: max_duration must be positive")
	}

	// Resolver identities
	for _, r := range c.Resolver.Resolvers {
		if !common.IsHexAddress(r) {
			errs = append(errs, fmt.Sprintf("resolver: %q is not a valid address", r))
		}
	}
	for _, a := range c.Resolver.Admins {
		if !common.IsHexAddress(a) {
			errs = append(errs, fmt.Sprintf("resolver: admin %q is not a valid address", a))
		}
	}
	needsWorker := c.Mode == "settle" || c.Mode == "full"
	if needsWorker {
		if c.Resolver.WorkerIdentity == "" {
			errs = append(errs, "resolver: worker_identity is required for mode "+c.Mode)
		} else if !common.IsHexAddress(c.Resolver.WorkerIdentity) {
			errs = append(errs, fmt.Sprintf("resolver: worker_identity %q is not a valid address", c.Resolver.WorkerIdentity))
		}
		if c.Resolver.SweepInterval.Duration <= 0 {
			errs = append(errs, "resolver: sweep_interval must be positive")
		}
	}

	// Storage
	driver := strings.ToLower(c.Storage.Driver)
	if !validDrivers[driver] {
		errs = append(errs, fmt.Sprintf("storage: unknown driver %q (valid: postgres, sqlite, memory)", c.Storage.Driver))
	}
	switch driver {
	case "postgres":
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	case "sqlite":
		if strings.TrimSpace(c.SQLite.Path) == "" {
			errs = append(errs, "sqlite: path must not be empty")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Archive
	if c.Archive.Enabled || c.Mode == "archive" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving is enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be positive when rate_limit is set")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
