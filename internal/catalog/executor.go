package catalog

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/observability"
)

type Executor struct {
	source        Source
	resolver      CategoryResolver
	maxCandidates int
	logger        *zap.Logger
}

// NewExecutor builds an executor. resolver may be nil, in which case category
// references are returned as stored.
func NewExecutor(source Source, resolver CategoryResolver, maxCandidates int, logger *zap.Logger) *Executor {
	return &Executor{
		source:        source,
		resolver:      resolver,
		maxCandidates: maxCandidates,
		logger:        logger,
	}
}

// Execute returns one page of the plan's ordered result set.
func (e *Executor) Execute(ctx context.Context, plan Plan, skip, limit int) ([]models.ScoredProduct, error) {
	ctx, span := observability.StartSpan(ctx, "catalog.execute",
		attribute.String("stage", plan.Stage().String()),
		attribute.Int("skip", skip),
		attribute.Int("limit", limit),
	)
	defer span.End()

	matched, err := e.evaluate(ctx, plan)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	sort.Slice(matched, func(i, j int) bool {
		return plan.Less(&matched[i], &matched[j])
	})
	if c := plan.Cap(); c > 0 && len(matched) > c {
		matched = matched[:c]
	}

	page := paginate(matched, skip, limit)
	e.enrich(ctx, page)
	return page, nil
}

// Count returns the size of the plan's result set, honoring its cap.
func (e *Executor) Count(ctx context.Context, plan Plan) (int64, error) {
	ctx, span := observability.StartSpan(ctx, "catalog.count",
		attribute.String("stage", plan.Stage().String()),
	)
	defer span.End()

	matched, err := e.evaluate(ctx, plan)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	n := len(matched)
	if c := plan.Cap(); c > 0 && n > c {
		n = c
	}
	return int64(n), nil
}

func (e *Executor) evaluate(ctx context.Context, plan Plan) ([]models.ScoredProduct, error) {
	start := time.Now()
	filter := plan.Filter()
	if filter.Limit <= 0 || (e.maxCandidates > 0 && filter.Limit > e.maxCandidates) {
		filter.Limit = e.maxCandidates
	}

	candidates, err := e.source.Published(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("loading %s candidates: %w", plan.Stage(), err)
	}

	matched := make([]models.ScoredProduct, 0, len(candidates))
	for i := range candidates {
		if !candidates[i].IsPublished() {
			continue
		}
		if filter.FeaturedOrInStock && !candidates[i].Featured && !candidates[i].InStock() {
			continue
		}
		if sp, ok := plan.Evaluate(&candidates[i]); ok {
			matched = append(matched, sp)
		}
	}

	observability.PlanEvaluationDuration.WithLabelValues(plan.Stage().String()).Observe(time.Since(start).Seconds())
	observability.PlanCandidates.WithLabelValues(plan.Stage().String()).Observe(float64(len(candidates)))
	return matched, nil
}

func (e *Executor) enrich(ctx context.Context, page []models.ScoredProduct) {
	if e.resolver == nil || len(page) == 0 {
		return
	}

	seen := make(map[string]bool)
	var ids []string
	for i := range page {
		for _, id := range []string{page[i].Category.ID, page[i].SubCategory.ID} {
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return
	}

	refs, err := e.resolver.ResolveCategories(ctx, ids)
	if err != nil {
		e.logger.Warn("category enrichment failed", zap.Int("ids", len(ids)), zap.Error(err))
		return
	}

	for i := range page {
		if ref, ok := refs[page[i].Category.ID]; ok {
			page[i].Category = ref
		}
		if ref, ok := refs[page[i].SubCategory.ID]; ok {
			page[i].SubCategory = ref
		}
	}
}

func paginate(items []models.ScoredProduct, skip, limit int) []models.ScoredProduct {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []models.ScoredProduct{}
	}
	end := len(items)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	out := make([]models.ScoredProduct, end-skip)
	copy(out, items[skip:end])
	return out
}
