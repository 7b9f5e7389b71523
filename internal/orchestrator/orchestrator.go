package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shubhsaxena/furniture-search/internal/catalog"
	"github.com/shubhsaxena/furniture-search/internal/config"
	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/observability"
	"github.com/shubhsaxena/furniture-search/internal/vocabulary"
)

const (
	degradedMessage    = "search temporarily degraded"
	defaultSuggestions = 8
	maxSuggestions     = 20
	trendingWindow     = 24 * time.Hour
	eventWriteTimeout  = 2 * time.Second
)

var errStagePanic = errors.New("stage panicked")

// Executor runs a plan against the catalog.
type Executor interface {
	Execute(ctx context.Context, plan catalog.Plan, skip, limit int) ([]models.ScoredProduct, error)
	Count(ctx context.Context, plan catalog.Plan) (int64, error)
}

// Cache stores search, suggestion and trending responses.
type Cache interface {
	GetSearchResults(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error)
	SetSearchResults(ctx context.Context, req *models.SearchRequest, resp *models.SearchResponse) error
	GetStaleResults(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error)
	IncrementHits(ctx context.Context, req *models.SearchRequest) (int64, error)
	GetSuggestions(ctx context.Context, prefix string, limit int) ([]models.Suggestion, error)
	SetSuggestions(ctx context.Context, prefix string, limit int, suggestions []models.Suggestion) error
	GetTrending(ctx context.Context, limit int) ([]models.TrendingQuery, error)
	SetTrending(ctx context.Context, limit int, queries []models.TrendingQuery) error
}

// EventStore persists search events and aggregates popular queries.
type EventStore interface {
	WriteSearchEvent(ctx context.Context, event *models.SearchEvent) error
	PopularQueries(ctx context.Context, window time.Duration, limit int) ([]models.TrendingQuery, error)
}

type Orchestrator struct {
	executor  Executor
	cache     Cache
	events    EventStore
	slowQuery *observability.SlowQueryDetector
	cfg       config.SearchConfig
	logger    *zap.Logger

	analyzer atomic.Pointer[Analyzer]
}

// New builds an orchestrator. cache, events and slowQuery may be nil.
func New(
	executor Executor,
	cache Cache,
	events EventStore,
	slowQuery *observability.SlowQueryDetector,
	vocab *vocabulary.Vocabulary,
	cfg config.SearchConfig,
	logger *zap.Logger,
) *Orchestrator {
	o := &Orchestrator{
		executor:  executor,
		cache:     cache,
		events:    events,
		slowQuery: slowQuery,
		cfg:       cfg,
		logger:    logger,
	}
	o.analyzer.Store(NewAnalyzer(vocab, cfg.Weights))
	return o
}

// SetVocabulary swaps in a new vocabulary snapshot for subsequent requests.
func (o *Orchestrator) SetVocabulary(vocab *vocabulary.Vocabulary) {
	o.analyzer.Store(NewAnalyzer(vocab, o.cfg.Weights))
}

// Analyze exposes query understanding without touching the catalog.
func (o *Orchestrator) Analyze(query string) *Analysis {
	return o.analyzer.Load().Analyze(query)
}

// Search runs the fallback ladder and always returns a well-formed response.
// Failures are reported through the response's error, fallback and noResults
// fields.
func (o *Orchestrator) Search(ctx context.Context, req models.SearchRequest) (resp *models.SearchResponse) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "orchestrator.search",
		attribute.String("query", req.Query),
	)
	defer span.End()

	req.Page, req.PageSize = o.clampPage(req.Page, req.PageSize)
	resp = o.emptyResponse(req)

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("search panicked",
				zap.String("query", req.Query),
				zap.Any("panic", r),
			)
			observability.StageFailures.WithLabelValues("search").Inc()
			resp = o.emptyResponse(req)
			resp.SetError(degradedMessage)
		}
		resp.TookMs = time.Since(start).Milliseconds()
	}()

	analyzer := o.analyzer.Load()
	a := analyzer.Analyze(req.Query)
	o.logger.Debug("query analyzed",
		zap.String("query", req.Query),
		zap.Strings("tokens", a.Tokens),
		zap.String("intent", a.Intent.PrimaryType),
		zap.Float64("confidence", a.Intent.Confidence),
	)

	if cached := o.lookupCache(ctx, &req); cached != nil {
		cached.CacheHit = true
		observability.SearchRequestsTotal.WithLabelValues(cached.Stage.String(), "cache_hit").Inc()
		return cached
	}

	applyAnalysis(resp, a)
	ladderErr := o.runLadder(ctx, analyzer.Builder(), a, &req, resp)

	span.SetAttributes(
		attribute.String("stage", resp.Stage.String()),
		attribute.Int64("total", resp.Total),
	)

	status := "success"
	if resp.Error != nil {
		status = "degraded"
	}
	elapsed := time.Since(start)
	observability.SearchRequestsTotal.WithLabelValues(resp.Stage.String(), status).Inc()
	observability.SearchRequestDuration.WithLabelValues(resp.Stage.String(), status).Observe(elapsed.Seconds())
	if resp.NoResults {
		observability.SearchNoResultsTotal.Inc()
	}

	if ladderErr == nil && o.cache != nil && resp.Stage != models.StageNone {
		if err := o.cache.SetSearchResults(ctx, &req, resp); err != nil {
			o.logger.Warn("cache set error", zap.Error(err))
		}
	}

	o.slowQuery.Observe(ctx, observability.SearchTiming{
		Normalized: strings.Join(a.Tokens, " "),
		Kind:       queryKind(a),
		Stage:      resp.Stage.String(),
		Duration:   elapsed,
		Total:      resp.Total,
		Fallback:   resp.Fallback,
	})
	o.recordEvent(a, &req, resp, elapsed)

	return resp
}

// runLadder fills resp from the first stage that yields results and returns
// the last stage error, if any.
func (o *Orchestrator) runLadder(ctx context.Context, builder *QueryBuilder, a *Analysis, req *models.SearchRequest, resp *models.SearchResponse) error {
	var lastErr error

	// Strict. A catalog failure here is treated like an empty result.
	products, total, err := o.executePaged(ctx, builder.Strict(a), req.Page, req.PageSize)
	if err != nil {
		lastErr = err
		o.stageFailed(models.StageStrict, a, err)
	} else if total > 0 {
		stage := models.StageStrict
		if a.IsBrowse() {
			stage = models.StageBrowse
		}
		setPaged(resp, stage, products, total)
		finalize(resp, a, lastErr)
		return lastErr
	}

	// A relaxed failure goes straight to the flat find: once both text stages
	// have errored the catalog is treated as unhealthy, and popularity would
	// run the same kind of full scan against it.
	relaxedFailed := false
	if a.Classified.HasTextTerms() {
		observability.FallbackCounter.WithLabelValues("relaxed").Inc()
		products, total, err = o.executePaged(ctx, builder.Relaxed(a), req.Page, req.PageSize)
		if err != nil {
			lastErr = err
			relaxedFailed = true
			o.stageFailed(models.StageRelaxed, a, err)
		} else if total > 0 {
			setPaged(resp, models.StageRelaxed, products, total)
			finalize(resp, a, lastErr)
			return lastErr
		}
	}

	resp.NoResults = true

	if !relaxedFailed {
		observability.FallbackCounter.WithLabelValues("popularity").Inc()
		products, err = o.executeAll(ctx, builder.Popularity(req.PageSize))
		if err == nil && len(products) > 0 {
			setUnpaged(resp, models.StagePopularity, products)
			finalize(resp, a, lastErr)
			return lastErr
		}
		if err != nil {
			lastErr = err
			o.stageFailed(models.StagePopularity, a, err)
		}
	}

	observability.FallbackCounter.WithLabelValues("flat").Inc()
	products, err = o.executeAll(ctx, builder.Flat(o.cfg.FallbackLimit))
	if err == nil && len(products) > 0 {
		setUnpaged(resp, models.StageFlat, products)
		finalize(resp, a, lastErr)
		return lastErr
	}
	if err != nil {
		lastErr = err
		o.stageFailed(models.StageFlat, a, err)
	}

	if stale := o.staleResults(ctx, req); stale != nil {
		observability.FallbackCounter.WithLabelValues("stale_cache").Inc()
		resp.Products = stale.Products
		resp.Total = stale.Total
		resp.HasMore = stale.HasMore
		resp.TotalPages = stale.TotalPages
		resp.Stage = stale.Stage
		resp.CacheHit = true
		finalize(resp, a, lastErr)
		return lastErr
	}

	resp.Stage = models.StageNone
	finalize(resp, a, lastErr)
	return lastErr
}

// executePaged runs the page and its count concurrently over the same plan.
func (o *Orchestrator) executePaged(ctx context.Context, plan catalog.Plan, page, pageSize int) ([]models.ScoredProduct, int64, error) {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()

	var (
		products []models.ScoredProduct
		total    int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return guard(plan.Stage(), func() error {
			var err error
			products, err = o.executor.Execute(gctx, plan, (page-1)*pageSize, pageSize)
			return err
		})
	})
	g.Go(func() error {
		return guard(plan.Stage(), func() error {
			var err error
			total, err = o.executor.Count(gctx, plan)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// executeAll runs a capped plan without pagination.
func (o *Orchestrator) executeAll(ctx context.Context, plan catalog.Plan) ([]models.ScoredProduct, error) {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()

	var products []models.ScoredProduct
	err := guard(plan.Stage(), func() error {
		var err error
		products, err = o.executor.Execute(ctx, plan, 0, plan.Cap())
		return err
	})
	return products, err
}

func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.QueryTimeout > 0 {
		return context.WithTimeout(ctx, o.cfg.QueryTimeout)
	}
	return context.WithCancel(ctx)
}

// guard converts a panic inside a stage into an error.
func guard(stage models.Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %w: %v", stage, errStagePanic, r)
		}
	}()
	return fn()
}

func (o *Orchestrator) stageFailed(stage models.Stage, a *Analysis, err error) {
	observability.StageFailures.WithLabelValues(stage.String()).Inc()
	o.logger.Warn("search stage failed, falling through",
		zap.String("stage", stage.String()),
		zap.String("query", a.Query),
		zap.Error(err),
	)
}

func (o *Orchestrator) lookupCache(ctx context.Context, req *models.SearchRequest) *models.SearchResponse {
	if o.cache == nil || req.ForceFresh {
		return nil
	}
	cached, err := o.cache.GetSearchResults(ctx, req)
	if err != nil {
		o.logger.Warn("cache lookup error", zap.Error(err))
		return nil
	}
	if cached == nil {
		return nil
	}
	if _, err := o.cache.IncrementHits(ctx, req); err != nil {
		o.logger.Debug("cache hit counter error", zap.Error(err))
	}
	return cached
}

func (o *Orchestrator) staleResults(ctx context.Context, req *models.SearchRequest) *models.SearchResponse {
	if o.cache == nil {
		return nil
	}
	stale, err := o.cache.GetStaleResults(ctx, req)
	if err != nil {
		o.logger.Warn("stale cache lookup error", zap.Error(err))
		return nil
	}
	if stale == nil || len(stale.Products) == 0 {
		return nil
	}
	return stale
}

func (o *Orchestrator) recordEvent(a *Analysis, req *models.SearchRequest, resp *models.SearchResponse, elapsed time.Duration) {
	if o.events == nil {
		return
	}
	event := &models.SearchEvent{
		Query:       strings.TrimSpace(req.Query),
		Normalized:  strings.Join(a.Tokens, " "),
		PrimaryType: a.Intent.PrimaryType,
		Confidence:  a.Intent.Confidence,
		Stage:       resp.Stage.String(),
		Total:       resp.Total,
		Fallback:    resp.Fallback,
		NoResults:   resp.NoResults,
		DurationMs:  float64(elapsed.Milliseconds()),
		RequestID:   req.RequestID,
		Timestamp:   time.Now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventWriteTimeout)
		defer cancel()
		if err := o.events.WriteSearchEvent(ctx, event); err != nil {
			o.logger.Warn("failed to record search event", zap.Error(err))
		}
	}()
}

func (o *Orchestrator) clampPage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = o.cfg.DefaultPageSize
	}
	if o.cfg.MaxPageSize > 0 && pageSize > o.cfg.MaxPageSize {
		pageSize = o.cfg.MaxPageSize
	}
	if pageSize <= 0 {
		pageSize = 1
	}
	// page*pageSize must fit in an int; any page past that is empty anyway.
	if maxPage := math.MaxInt / pageSize; page > maxPage {
		page = maxPage
	}
	return page, pageSize
}

func (o *Orchestrator) emptyResponse(req models.SearchRequest) *models.SearchResponse {
	resp := models.NewSearchResponse(req.Query)
	resp.Page = req.Page
	resp.PageSize = req.PageSize
	return resp
}

func applyAnalysis(resp *models.SearchResponse, a *Analysis) {
	resp.Normalized = append([]string{}, a.Tokens...)
	resp.Classified = a.Classified
	resp.Intent = a.Intent
	resp.Numerics = a.Numerics
	if a.Intent.Resolved() {
		pt := a.Intent.PrimaryType
		resp.PrimaryType = &pt
	}
}

func setPaged(resp *models.SearchResponse, stage models.Stage, products []models.ScoredProduct, total int64) {
	resp.Stage = stage
	resp.Products = nonNil(products)
	resp.Total = total
	resp.TotalPages = int((total + int64(resp.PageSize) - 1) / int64(resp.PageSize))
	resp.HasMore = int64(resp.Page*resp.PageSize) < total
}

func setUnpaged(resp *models.SearchResponse, stage models.Stage, products []models.ScoredProduct) {
	resp.Stage = stage
	resp.Products = nonNil(products)
	resp.Total = int64(len(resp.Products))
	resp.HasMore = false
	resp.TotalPages = 0
	if resp.Total > 0 {
		resp.TotalPages = 1
	}
}

// finalize sets the fallback flag and, when nothing could be shown, the error.
func finalize(resp *models.SearchResponse, a *Analysis, err error) {
	resp.Fallback = resp.Total > 0 && a.HasTerms() && hasWeakResult(resp.Products)
	if err != nil && len(resp.Products) == 0 {
		resp.SetError(degradedMessage)
	}
}

func hasWeakResult(products []models.ScoredProduct) bool {
	for i := range products {
		if products[i].SearchScore == nil || *products[i].SearchScore < strongMinScore {
			return true
		}
	}
	return false
}

func nonNil(products []models.ScoredProduct) []models.ScoredProduct {
	if products == nil {
		return []models.ScoredProduct{}
	}
	return products
}
