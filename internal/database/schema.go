package database

const alertLogTable = `
CREATE TABLE IF NOT EXISTS alert_log (
	timestamp   DateTime64(3),
	alert_id    UUID,
	severity    LowCardinality(String),
	status      LowCardinality(String),
	water_level Float64,
	outcome     LowCardinality(String),
	error       String,
	latency_ms  Float64
) ENGINE = MergeTree()
ORDER BY (timestamp, severity)
TTL toDateTime(timestamp) + INTERVAL 90 DAY
`

// AllTables returns the DDL statements run at startup, in order.
func AllTables() []string {
	return []string{alertLogTable}
}
