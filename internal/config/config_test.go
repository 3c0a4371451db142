package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "ALLOWED_ORIGINS", "CLICKHOUSE_PROTOCOL", "CLICKHOUSE_HOST", "CLICKHOUSE_HTTP_PORT",
		"CLICKHOUSE_PORT", "JWT_SECRET", "DISCOVER_MAX_LIMIT", "DISCOVER_QUERY_TIMEOUT",
		"DISCOVER_CACHE_TTL", "DISCOVER_TABLE", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "20002", cfg.Server.Port)
	assert.Equal(t, "http", cfg.Database.Protocol)
	assert.Equal(t, "8123", cfg.Database.HTTPPort)
	assert.Equal(t, "9000", cfg.Database.NativePort)
	assert.Equal(t, "events", cfg.Database.Table)
	assert.Empty(t, cfg.JWT.Secret)
	assert.Equal(t, 10000, cfg.Discover.MaxLimit)
	assert.Equal(t, 30*time.Second, cfg.Discover.QueryTimeout)
	assert.Equal(t, time.Minute, cfg.Discover.CacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("CLICKHOUSE_PROTOCOL", "native")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_ISSUER", "click-lite")
	t.Setenv("DISCOVER_MAX_LIMIT", "500")
	t.Setenv("DISCOVER_QUERY_TIMEOUT", "5s")
	t.Setenv("DISCOVER_CACHE_TTL", "0s")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "native", cfg.Database.Protocol)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "click-lite", cfg.JWT.Issuer)
	assert.Equal(t, 500, cfg.Discover.MaxLimit)
	assert.Equal(t, 5*time.Second, cfg.Discover.QueryTimeout)
	assert.Equal(t, time.Duration(0), cfg.Discover.CacheTTL)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("DISCOVER_MAX_LIMIT", "lots")
	t.Setenv("DISCOVER_QUERY_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 10000, cfg.Discover.MaxLimit)
	assert.Equal(t, 30*time.Second, cfg.Discover.QueryTimeout)
}
