package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/rs/zerolog"

	"water-monitor/internal/logger"
	"water-monitor/internal/models"
)

// ClickHouseDB is the alert audit log. Readings are never stored here.
type ClickHouseDB struct {
	conn driver.Conn
	log  zerolog.Logger
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(addr, database, username, password string) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	return newClickHouseDB(conn, addr)
}

// newClickHouseDB pings conn and prepares the schema. conn is closed when
// either step fails.
func newClickHouseDB(conn driver.Conn, addr string) (*ClickHouseDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	db := &ClickHouseDB{conn: conn, log: logger.WithComponent("clickhouse")}
	db.log.Info().Str("addr", addr).Msg("connected to ClickHouse")

	if err := db.InitSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// InitSchema creates the necessary tables if they don't exist
func (db *ClickHouseDB) InitSchema(ctx context.Context) error {
	for _, tableSQL := range AllTables() {
		if err := db.conn.Exec(ctx, tableSQL); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	db.log.Info().Msg("database schema initialized")
	return nil
}

// SaveAlertOutcome records one dispatch attempt.
func (db *ClickHouseDB) SaveAlertOutcome(ctx context.Context, rec *models.AlertRecord) error {
	query := `
		INSERT INTO alert_log (timestamp, alert_id, severity, status, water_level, outcome, error, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := db.conn.Exec(ctx, query,
		rec.Timestamp,
		rec.ID,
		rec.Severity.String(),
		rec.Status,
		rec.WaterLevel,
		rec.Outcome,
		rec.Error,
		rec.LatencyMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert record: %w", err)
	}

	db.log.Debug().Str("alert_id", rec.ID.String()).Str("outcome", rec.Outcome).Msg("saved alert record")
	return nil
}

// RecentAlerts returns up to limit records, newest first.
func (db *ClickHouseDB) RecentAlerts(ctx context.Context, limit int) ([]models.AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT timestamp, alert_id, severity, status, water_level, outcome, error, latency_ms
		FROM alert_log
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := db.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert log: %w", err)
	}
	defer rows.Close()

	var out []models.AlertRecord
	for rows.Next() {
		var (
			rec      models.AlertRecord
			severity string
		)
		if err := rows.Scan(&rec.Timestamp, &rec.ID, &severity, &rec.Status, &rec.WaterLevel, &rec.Outcome, &rec.Error, &rec.LatencyMs); err != nil {
			return nil, fmt.Errorf("failed to scan alert record: %w", err)
		}
		if err := rec.Severity.UnmarshalText([]byte(severity)); err != nil {
			db.log.Warn().Str("severity", severity).Msg("unknown severity in alert log")
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alert log: %w", err)
	}

	return out, nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		if err := db.conn.Close(); err != nil {
			return fmt.Errorf("failed to close ClickHouse connection: %w", err)
		}
		db.log.Info().Msg("ClickHouse connection closed")
	}
	return nil
}
