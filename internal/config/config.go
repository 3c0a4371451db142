package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Discover DiscoverConfig
	LogLevel string
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// DatabaseConfig selects how ClickHouse is reached. The http protocol talks
// to the HTTP interface on HTTPPort, native uses the clickhouse-go driver on
// NativePort.
type DatabaseConfig struct {
	Protocol   string
	Host       string
	HTTPPort   string
	NativePort string
	Database   string
	Username   string
	Password   string
	Table      string
}

// JWTConfig holds token settings. An empty secret disables authentication.
type JWTConfig struct {
	Secret string
	Issuer string
}

type DiscoverConfig struct {
	MaxLimit     int
	QueryTimeout time.Duration
	CacheTTL     time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "20002"),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			Protocol:   getEnv("CLICKHOUSE_PROTOCOL", "http"),
			Host:       getEnv("CLICKHOUSE_HOST", "localhost"),
			HTTPPort:   getEnv("CLICKHOUSE_HTTP_PORT", "8123"),
			NativePort: getEnv("CLICKHOUSE_PORT", "9000"),
			Database:   getEnv("CLICKHOUSE_DATABASE", "click_lite"),
			Username:   getEnv("CLICKHOUSE_USER", "default"),
			Password:   getEnv("CLICKHOUSE_PASSWORD", ""),
			Table:      getEnv("DISCOVER_TABLE", "events"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", ""),
			Issuer: getEnv("JWT_ISSUER", ""),
		},
		Discover: DiscoverConfig{
			MaxLimit:     getEnvInt("DISCOVER_MAX_LIMIT", 10000),
			QueryTimeout: getEnvDuration("DISCOVER_QUERY_TIMEOUT", 30*time.Second),
			CacheTTL:     getEnvDuration("DISCOVER_CACHE_TTL", time.Minute),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
