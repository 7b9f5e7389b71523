package orchestrator

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/shubhsaxena/furniture-search/internal/catalog"
	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/observability"
)

// Suggest returns product names for a typed prefix. The prefix goes through
// the same analysis as a search; strict matches are preferred and relaxed
// substring matches fill in when there are none.
func (o *Orchestrator) Suggest(ctx context.Context, prefix string, limit int) []models.Suggestion {
	ctx, span := observability.StartSpan(ctx, "orchestrator.suggest",
		attribute.String("prefix", prefix),
	)
	defer span.End()

	if limit <= 0 {
		limit = defaultSuggestions
	}
	if limit > maxSuggestions {
		limit = maxSuggestions
	}

	analyzer := o.analyzer.Load()
	a := analyzer.Analyze(prefix)
	if len(a.Tokens) == 0 {
		return []models.Suggestion{}
	}
	key := strings.Join(a.Tokens, " ")

	if o.cache != nil {
		cached, err := o.cache.GetSuggestions(ctx, key, limit)
		if err != nil {
			o.logger.Warn("suggestion cache lookup error", zap.Error(err))
		} else if cached != nil {
			return cached
		}
	}

	builder := analyzer.Builder()
	suggestions := []models.Suggestion{}
	for _, plan := range []catalog.Plan{builder.Strict(a), builder.Relaxed(a)} {
		products, err := o.executeAll(ctx, limitedPlan{Plan: plan, limit: limit * 2})
		if err != nil {
			o.stageFailed(plan.Stage(), a, err)
			continue
		}
		suggestions = appendSuggestions(suggestions, products, limit)
		if len(suggestions) > 0 {
			break
		}
	}

	if o.cache != nil && len(suggestions) > 0 {
		if err := o.cache.SetSuggestions(ctx, key, limit, suggestions); err != nil {
			o.logger.Warn("suggestion cache set error", zap.Error(err))
		}
	}
	return suggestions
}

// Trending returns the most frequent recent queries.
func (o *Orchestrator) Trending(ctx context.Context, limit int) []models.TrendingQuery {
	ctx, span := observability.StartSpan(ctx, "orchestrator.trending")
	defer span.End()

	if limit <= 0 {
		limit = defaultSuggestions
	}
	if limit > maxSuggestions {
		limit = maxSuggestions
	}

	if o.cache != nil {
		cached, err := o.cache.GetTrending(ctx, limit)
		if err != nil {
			o.logger.Warn("trending cache lookup error", zap.Error(err))
		} else if cached != nil {
			return cached
		}
	}

	if o.events == nil {
		return []models.TrendingQuery{}
	}

	queries, err := o.events.PopularQueries(ctx, trendingWindow, limit)
	if err != nil {
		o.logger.Warn("trending query lookup failed", zap.Error(err))
		return []models.TrendingQuery{}
	}
	if queries == nil {
		queries = []models.TrendingQuery{}
	}

	if o.cache != nil && len(queries) > 0 {
		if err := o.cache.SetTrending(ctx, limit, queries); err != nil {
			o.logger.Warn("trending cache set error", zap.Error(err))
		}
	}
	return queries
}

// limitedPlan caps another plan's result set.
type limitedPlan struct {
	catalog.Plan
	limit int
}

func (lp limitedPlan) Cap() int { return lp.limit }

func appendSuggestions(dst []models.Suggestion, products []models.ScoredProduct, limit int) []models.Suggestion {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[strings.ToLower(s.Text)] = true
	}
	for i := range products {
		if len(dst) >= limit {
			break
		}
		name := strings.TrimSpace(products[i].Name)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		dst = append(dst, models.Suggestion{Text: name, ProductID: products[i].ID})
	}
	return dst
}
