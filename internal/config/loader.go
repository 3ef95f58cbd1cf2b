package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies WAGERBOOK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known WAGERBOOK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Ledger ──
	setInt64(&cfg.Ledger.MinStake, "WAGERBOOK_LEDGER_MIN_STAKE")
	setInt64(&cfg.Ledger.FeeRateBps, "WAGERBOOK_LEDGER_FEE_RATE_BPS")
	setStr(&cfg.Ledger.FeeAccount, "WAGERBOOK_LEDGER_FEE_ACCOUNT")
	setDuration(&cfg.Ledger.MaxDuration, "WAGERBOOK_LEDGER_MAX_DURATION")

	// ── Resolver ──
	setStringSlice(&cfg.Resolver.Resolvers, "WAGERBOOK_RESOLVER_RESOLVERS")
	setStringSlice(&cfg.Resolver.Admins, "WAGERBOOK_RESOLVER_ADMINS")
	setStr(&cfg.Resolver.WorkerIdentity, "WAGERBOOK_RESOLVER_WORKER_IDENTITY")
	setDuration(&cfg.Resolver.SweepInterval, "WAGERBOOK_RESOLVER_SWEEP_INTERVAL")
	setInt(&cfg.Resolver.BatchLimit, "WAGERBOOK_RESOLVER_BATCH_LIMIT")

	// ── Storage ──
	setStr(&cfg.Storage.Driver, "WAGERBOOK_STORAGE_DRIVER")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "WAGERBOOK_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "WAGERBOOK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "WAGERBOOK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "WAGERBOOK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "WAGERBOOK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "WAGERBOOK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "WAGERBOOK_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "WAGERBOOK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "WAGERBOOK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "WAGERBOOK_POSTGRES_RUN_MIGRATIONS")

	// ── SQLite ──
	setStr(&cfg.SQLite.Path, "WAGERBOOK_SQLITE_PATH")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "WAGERBOOK_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "WAGERBOOK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "WAGERBOOK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "WAGERBOOK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "WAGERBOOK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "WAGERBOOK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "WAGERBOOK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "WAGERBOOK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "WAGERBOOK_S3_REGION")
	setStr(&cfg.S3.Bucket, "WAGERBOOK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "WAGERBOOK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "WAGERBOOK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "WAGERBOOK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "WAGERBOOK_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "WAGERBOOK_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "WAGERBOOK_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "WAGERBOOK_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "WAGERBOOK_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "WAGERBOOK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "WAGERBOOK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "WAGERBOOK_SERVER_API_KEY")
	setStr(&cfg.Server.APIKeyHash, "WAGERBOOK_SERVER_API_KEY_HASH")
	setInt(&cfg.Server.RateLimit, "WAGERBOOK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "WAGERBOOK_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "WAGERBOOK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "WAGERBOOK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "WAGERBOOK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "WAGERBOOK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "WAGERBOOK_MODE")
	setStr(&cfg.LogLevel, "WAGERBOOK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
