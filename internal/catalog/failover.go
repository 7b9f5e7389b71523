package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/observability"
)

// FailoverSource reads from primary and falls back to secondary when the
// primary errors.
type FailoverSource struct {
	primary   Source
	secondary Source
	logger    *zap.Logger
}

func NewFailoverSource(primary, secondary Source, logger *zap.Logger) *FailoverSource {
	return &FailoverSource{primary: primary, secondary: secondary, logger: logger}
}

func (fs *FailoverSource) Published(ctx context.Context, f CandidateFilter) ([]models.Product, error) {
	products, err := fs.primary.Published(ctx, f)
	if err == nil {
		return products, nil
	}
	if fs.secondary == nil || ctx.Err() != nil {
		return nil, err
	}

	observability.FallbackCounter.WithLabelValues("secondary_source").Inc()
	fs.logger.Warn("primary catalog source failed, using secondary", zap.Error(err))

	products, secErr := fs.secondary.Published(ctx, f)
	if secErr != nil {
		return nil, fmt.Errorf("primary: %v; secondary: %w", err, secErr)
	}
	return products, nil
}
