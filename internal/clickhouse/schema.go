package clickhouse

const insertSearchEvent = `
	INSERT INTO search_events (
		query, normalized, primary_type, confidence, stage,
		total, fallback, no_results, duration_ms, request_id, timestamp
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const selectPopularQueries = `
	SELECT
		normalized,
		count() AS cnt
	FROM search_events
	WHERE timestamp >= ?
		AND normalized != ''
		AND no_results = false
	GROUP BY normalized
	ORDER BY cnt DESC, normalized ASC
	LIMIT ?
`

const insertSlowSearch = `
	INSERT INTO slow_searches (
		query_hash, kind, stage, severity, duration_ms,
		total, fallback, timestamp, trace_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertChangelog = `
	INSERT INTO product_changelog (
		document_id, collection, operation, timestamp, version
	) VALUES (?, ?, ?, ?, ?)
`

var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS search_events (
		query String,
		normalized String,
		primary_type LowCardinality(String),
		confidence Float64,
		stage LowCardinality(String),
		total Int64,
		fallback Bool,
		no_results Bool,
		duration_ms Float64,
		request_id String,
		timestamp DateTime
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, normalized)
	TTL timestamp + INTERVAL 90 DAY`,

	`CREATE TABLE IF NOT EXISTS slow_searches (
		query_hash String,
		kind LowCardinality(String),
		stage LowCardinality(String),
		severity LowCardinality(String),
		duration_ms Float64,
		total Int64,
		fallback Bool,
		timestamp DateTime,
		trace_id String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, stage, query_hash)
	TTL timestamp + INTERVAL 30 DAY`,

	`CREATE TABLE IF NOT EXISTS product_changelog (
		document_id String,
		collection String,
		operation LowCardinality(String),
		timestamp DateTime,
		version Int64
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (timestamp, document_id)`,
}
