package database

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog/log"

	"github.com/your-username/click-lite-discover/internal/config"
	"github.com/your-username/click-lite-discover/internal/models"
)

// DB is a ClickHouse connection usable by the query engine
type DB interface {
	Query(ctx context.Context, sql string, args []interface{}) (*models.QueryResult, error)
	Exec(ctx context.Context, statement string) error
	Ping(ctx context.Context) error
	Close() error
}

const eventsSchema = `
CREATE TABLE IF NOT EXISTS %s (
	event_id String,
	project_id UInt64,
	platform LowCardinality(String),
	message String,
	primary_hash String,
	timestamp DateTime,
	received DateTime,
	user_id Nullable(String),
	username Nullable(String),
	email Nullable(String),
	ip_address Nullable(String),
	sdk_name LowCardinality(Nullable(String)),
	sdk_version LowCardinality(Nullable(String)),
	http_method LowCardinality(Nullable(String)),
	http_referer Nullable(String),
	os_build Nullable(String),
	os_kernel_version Nullable(String),
	device_name Nullable(String),
	device_brand Nullable(String),
	device_locale Nullable(String),
	device_uuid Nullable(String),
	device_model_id Nullable(String),
	device_arch Nullable(String),
	device_battery_level Nullable(Float32),
	device_orientation Nullable(String),
	device_simulator Nullable(UInt8),
	device_online Nullable(UInt8),
	device_charging Nullable(UInt8),
	INDEX idx_message message TYPE tokenbf_v1(32768, 3, 0) GRANULARITY 4,
	INDEX idx_user_id user_id TYPE bloom_filter GRANULARITY 1
) ENGINE = MergeTree()
PARTITION BY toYYYYMMDD(timestamp)
ORDER BY (project_id, timestamp, event_id)
TTL timestamp + INTERVAL 90 DAY
SETTINGS index_granularity = 8192
`

// New connects to ClickHouse with the configured protocol
func New(ctx context.Context, cfg config.DatabaseConfig) (DB, error) {
	var db DB
	switch cfg.Protocol {
	case "", "http":
		baseURL := fmt.Sprintf("http://%s", net.JoinHostPort(cfg.Host, cfg.HTTPPort))
		log.Info().Str("url", baseURL).Str("database", cfg.Database).Str("username", cfg.Username).Msg("Connecting to ClickHouse")
		db = NewHTTP(baseURL, cfg)
	case "native":
		addr := net.JoinHostPort(cfg.Host, cfg.NativePort)
		log.Info().Str("addr", addr).Str("database", cfg.Database).Str("username", cfg.Username).Msg("Connecting to ClickHouse")
		db = NewNative(clickhouse.OpenDB(&clickhouse.Options{
			Addr: []string{addr},
			Auth: clickhouse.Auth{
				Database: cfg.Database,
				Username: cfg.Username,
				Password: cfg.Password,
			},
			DialTimeout: 5 * time.Second,
			Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		}))
	default:
		return nil, fmt.Errorf("unsupported ClickHouse protocol %q", cfg.Protocol)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to test ClickHouse connection: %w", err)
	}

	log.Info().Str("protocol", cfg.Protocol).Msg("Connected to ClickHouse")
	return db, nil
}

// InitSchema creates the events table if it does not exist
func InitSchema(ctx context.Context, db DB, table string) error {
	if err := db.Exec(ctx, fmt.Sprintf(eventsSchema, table)); err != nil {
		return fmt.Errorf("failed to create %s table: %w", table, err)
	}

	log.Info().Str("table", table).Msg("Database schema initialized")
	return nil
}
