package observability

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/furniture-search/internal/models"
)

const (
	SeverityNormal   = "normal"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"

	maxPendingSlowWrites = 32
	slowWriteTimeout     = 2 * time.Second
)

// SlowSearchWriter persists slow search samples.
type SlowSearchWriter interface {
	WriteSlowSearch(ctx context.Context, event *models.SlowSearch) error
}

// SearchTiming describes one completed search.
type SearchTiming struct {
	// Normalized is the token string after analysis; only its hash is kept.
	Normalized string
	Kind       string
	Stage      string
	Duration   time.Duration
	Total      int64
	Fallback   bool
}

// SlowQueryDetector flags searches over the warning threshold. Each flagged
// search is counted, logged and, when a writer is set, sampled to storage.
type SlowQueryDetector struct {
	warningThreshold  time.Duration
	criticalThreshold time.Duration
	logger            *zap.Logger
	writer            SlowSearchWriter
	pending           chan struct{}
}

func NewSlowQueryDetector(warning, critical time.Duration, logger *zap.Logger, writer SlowSearchWriter) *SlowQueryDetector {
	return &SlowQueryDetector{
		warningThreshold:  warning,
		criticalThreshold: critical,
		logger:            logger,
		writer:            writer,
		pending:           make(chan struct{}, maxPendingSlowWrites),
	}
}

// Observe records t when it is slow. A nil detector ignores everything.
func (sqd *SlowQueryDetector) Observe(ctx context.Context, t SearchTiming) {
	if sqd == nil || t.Duration <= sqd.warningThreshold {
		return
	}

	severity := sqd.classifySeverity(t.Duration)
	SlowQueryCounter.WithLabelValues(severity, t.Stage, t.Kind).Inc()

	event := &models.SlowSearch{
		QueryHash:  hashQuery(t.Normalized),
		Kind:       t.Kind,
		Stage:      t.Stage,
		Severity:   severity,
		DurationMs: float64(t.Duration.Milliseconds()),
		Total:      t.Total,
		Fallback:   t.Fallback,
		Timestamp:  time.Now().UTC(),
		TraceID:    TraceIDFromContext(ctx),
	}

	logFn := sqd.logger.Warn
	if severity == SeverityCritical {
		logFn = sqd.logger.Error
	}
	logFn("slow search",
		zap.String("trace_id", event.TraceID),
		zap.String("query_hash", event.QueryHash),
		zap.String("kind", event.Kind),
		zap.String("stage", event.Stage),
		zap.Float64("duration_ms", event.DurationMs),
		zap.Int64("total", event.Total),
		zap.Bool("fallback", event.Fallback),
	)

	if sqd.writer == nil {
		return
	}
	select {
	case sqd.pending <- struct{}{}:
	default:
		sqd.logger.Debug("slow search sample dropped, writer saturated")
		return
	}
	go func() {
		defer func() { <-sqd.pending }()
		writeCtx, cancel := context.WithTimeout(context.Background(), slowWriteTimeout)
		defer cancel()
		if err := sqd.writer.WriteSlowSearch(writeCtx, event); err != nil {
			sqd.logger.Warn("failed to write slow search sample",
				zap.String("trace_id", event.TraceID),
				zap.Error(err),
			)
		}
	}()
}

func (sqd *SlowQueryDetector) classifySeverity(d time.Duration) string {
	if d > sqd.criticalThreshold {
		return SeverityCritical
	}
	if d > sqd.warningThreshold {
		return SeverityWarning
	}
	return SeverityNormal
}

// hashQuery keeps raw shopper queries out of logs and analytics.
func hashQuery(q string) string {
	h := fnv.New64a()
	h.Write([]byte(q))
	return fmt.Sprintf("%016x", h.Sum64())
}
