package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Resolver.Resolvers = []string{"0x00000000000000000000000000000000000000F1"}
	cfg.Resolver.WorkerIdentity = "0x00000000000000000000000000000000000000F1"
	return cfg
}

func TestDefaultsValidateWithResolvers(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Mode = "turbo" }, "unknown mode"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"zero min stake", func(c *Config) { c.Ledger.MinStake = 0 }, "min_stake"},
		{"fee over 100%", func(c *Config) { c.Ledger.FeeRateBps = 10_001 }, "fee_rate_bps"},
		{"bad resolver address", func(c *Config) { c.Resolver.Resolvers = []string{"bogus"} }, "not a valid address"},
		{"missing worker identity", func(c *Config) { c.Resolver.WorkerIdentity = "" }, "worker_identity"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "oracle" }, "unknown driver"},
		{"bad port", func(c *Config) { c.Server.Port = 99_999 }, "port"},
		{"sqlite without path", func(c *Config) {
			c.Storage.Driver = "sqlite"
			c.SQLite.Path = ""
		}, "sqlite: path"},
		{"archive without bucket", func(c *Config) {
			c.Archive.Enabled = true
			c.S3.Bucket = ""
		}, "bucket"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "server"

[ledger]
min_stake = 50
max_duration = "720h"

[storage]
driver = "sqlite"

[sqlite]
path = "/tmp/test.db"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "server", cfg.Mode)
	require.Equal(t, int64(50), cfg.Ledger.MinStake)
	require.Equal(t, 720*time.Hour, cfg.Ledger.MaxDuration.Duration)
	require.Equal(t, "sqlite", cfg.Storage.Driver)
	// Untouched section keeps its default.
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("WAGERBOOK_STORAGE_DRIVER", "memory")
	t.Setenv("WAGERBOOK_LEDGER_FEE_RATE_BPS", "350")
	t.Setenv("WAGERBOOK_RESOLVER_RESOLVERS", "0x00000000000000000000000000000000000000F1, 0x00000000000000000000000000000000000000F2")
	t.Setenv("WAGERBOOK_REDIS_ENABLED", "false")
	t.Setenv("WAGERBOOK_RESOLVER_SWEEP_INTERVAL", "15s")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	require.Equal(t, "memory", cfg.Storage.Driver)
	require.Equal(t, int64(350), cfg.Ledger.FeeRateBps)
	require.Equal(t, []string{
		"0x00000000000000000000000000000000000000F1",
		"0x00000000000000000000000000000000000000F2",
	}, cfg.Resolver.Resolvers)
	require.False(t, cfg.Redis.Enabled)
	require.Equal(t, 15*time.Second, cfg.Resolver.SweepInterval.Duration)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "hunter2"
	cfg.Server.APIKey = "sekret"
	cfg.Notify.TelegramToken = "tok"

	red := RedactedConfig(&cfg)
	require.Equal(t, "***", red.Postgres.Password)
	require.Equal(t, "***", red.Server.APIKey)
	require.Equal(t, "***", red.Notify.TelegramToken)

	// Original untouched, and slices are independent copies.
	require.Equal(t, "hunter2", cfg.Postgres.Password)
	red.Resolver.Resolvers[0] = "mutated"
	require.Equal(t, "0x00000000000000000000000000000000000000F1", cfg.Resolver.Resolvers[0])
}
