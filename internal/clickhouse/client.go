package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/furniture-search/internal/config"
	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/observability"
)

// Client is the analytics store: the search log behind trending queries,
// slow query samples and the catalog changelog.
type Client struct {
	conn   driver.Conn
	logger *zap.Logger
}

func NewClient(cfg config.ClickHouseConfig, logger *zap.Logger) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addresses,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": int(cfg.QueryTimeout.Seconds()),
		},
		DialTimeout:  cfg.DialTimeout,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("opening clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging clickhouse: %w", err)
	}

	logger.Info("clickhouse client connected", zap.Strings("addresses", cfg.Addresses))

	return &Client{
		conn:   conn,
		logger: logger,
	}, nil
}

func (c *Client) WriteSearchEvent(ctx context.Context, event *models.SearchEvent) error {
	start := time.Now()
	err := c.conn.Exec(ctx, insertSearchEvent,
		event.Query,
		event.Normalized,
		event.PrimaryType,
		event.Confidence,
		event.Stage,
		event.Total,
		event.Fallback,
		event.NoResults,
		event.DurationMs,
		event.RequestID,
		event.Timestamp,
	)
	observeQuery("search_event", start, err)
	if err != nil {
		return fmt.Errorf("ch insert search event: %w", err)
	}
	return nil
}

// PopularQueries returns the most frequent normalized queries inside the
// window. Searches that matched nothing are left out.
func (c *Client) PopularQueries(ctx context.Context, window time.Duration, limit int) ([]models.TrendingQuery, error) {
	ctx, span := observability.StartSpan(ctx, "ch.popular_queries",
		attribute.Int("limit", limit),
	)
	defer span.End()

	start := time.Now()
	since := time.Now().UTC().Add(-window)

	rows, err := c.conn.Query(ctx, selectPopularQueries, since, limit)
	if err != nil {
		observeQuery("popular_queries", start, err)
		return nil, fmt.Errorf("ch popular queries: %w", err)
	}
	defer rows.Close()

	var out []models.TrendingQuery
	for rows.Next() {
		var tq models.TrendingQuery
		var count uint64
		if err := rows.Scan(&tq.Query, &count); err != nil {
			return nil, fmt.Errorf("scanning popular query row: %w", err)
		}
		tq.Count = int64(count)
		out = append(out, tq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating popular query rows: %w", err)
	}

	observeQuery("popular_queries", start, nil)
	return out, nil
}

func (c *Client) WriteSlowSearch(ctx context.Context, event *models.SlowSearch) error {
	start := time.Now()
	err := c.conn.Exec(ctx, insertSlowSearch,
		event.QueryHash,
		event.Kind,
		event.Stage,
		event.Severity,
		event.DurationMs,
		event.Total,
		event.Fallback,
		event.Timestamp,
		event.TraceID,
	)
	observeQuery("slow_search", start, err)
	return err
}

func (c *Client) InsertDocumentEvent(ctx context.Context, event *models.ChangeEvent) error {
	start := time.Now()
	err := c.conn.Exec(ctx, insertChangelog,
		event.DocumentID,
		event.Collection,
		event.Type,
		event.Timestamp,
		event.Version,
	)
	observeQuery("changelog", start, err)
	return err
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) EnsureTables(ctx context.Context) error {
	for _, ddl := range tableDDL {
		if err := c.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}

	c.logger.Info("clickhouse tables ensured")
	return nil
}

func observeQuery(queryType string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.CHQueryDuration.WithLabelValues(queryType, status).Observe(time.Since(start).Seconds())
}
