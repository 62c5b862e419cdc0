package app

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 3, cfg.TxMaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.QuoteLockTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("TX_MAX_ATTEMPTS", "5")
	t.Setenv("PDF_TIMEOUT", "45s")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5, cfg.TxMaxAttempts)
	assert.Equal(t, 45*time.Second, cfg.PDFTimeout)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("TX_MAX_ATTEMPTS", "0")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoggerLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, parseLevel(nil))
	assert.Equal(t, slog.LevelDebug, parseLevel(&Config{LogLevel: "DEBUG"}))
	assert.Equal(t, slog.LevelWarn, parseLevel(&Config{LogLevel: "warning"}))
}

func TestInTestMode(t *testing.T) {
	for value, want := range map[string]bool{"true": true, "1": true, "nope": false, "": false} {
		t.Setenv(testModeEnv, value)
		assert.Equal(t, want, InTestMode(), value)
	}
}

func TestArchiveConfigDisabledByDefault(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.ArchiveConfig().Enabled())

	t.Setenv("ARCHIVE_ENDPOINT", "minio:9000")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	archive := cfg.ArchiveConfig()
	assert.True(t, archive.Enabled())
	assert.Equal(t, "quotations", archive.Bucket)
}

func TestConnectionOptions(t *testing.T) {
	t.Setenv("PG_MAX_CONNS", "12")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "2")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	pool := cfg.PoolOptions("quotedesk-api")
	assert.Equal(t, "quotedesk-api", pool.AppName)
	assert.EqualValues(t, 12, pool.MaxConns)
	assert.Equal(t, time.Hour, pool.MaxConnLifetime)

	opt := cfg.RedisOptions().AsynqOpt()
	assert.Equal(t, "redis:6380", opt.Addr)
	assert.Equal(t, 2, opt.DB)
}
