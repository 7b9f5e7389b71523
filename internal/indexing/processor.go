package indexing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubhsaxena/furniture-search/internal/cache"
	"github.com/shubhsaxena/furniture-search/internal/config"
	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/observability"
)

const (
	// maxBufferSize bounds the pending bulk buffer, including batches
	// requeued after a failed flush.
	maxBufferSize = 50000
	// maxAsyncWorkers bounds concurrent changelog and invalidation calls.
	maxAsyncWorkers = 128
)

var errBufferFull = errors.New("indexing buffer full")

type BulkIndexer interface {
	BulkIndex(ctx context.Context, actions []models.IndexAction) error
}

type ChangelogWriter interface {
	InsertDocumentEvent(ctx context.Context, event *models.ChangeEvent) error
}

type CacheInvalidator interface {
	InvalidatePattern(ctx context.Context, patterns []string) error
}

// StreamProcessor turns catalog change events into bulk index actions
// against the products index. Product and category changes both drop the
// cached search and suggestion results.
type StreamProcessor struct {
	indexer            BulkIndexer
	changelog          ChangelogWriter
	cache              CacheInvalidator
	index              string
	productsCollection string
	bulkSize           int
	logger             *zap.Logger

	mu      sync.Mutex
	buffer  []models.IndexAction
	ticker  *time.Ticker
	done    chan struct{}
	async   chan struct{}
	pending sync.WaitGroup
}

func NewStreamProcessor(
	indexer BulkIndexer,
	changelog ChangelogWriter,
	cache CacheInvalidator,
	esCfg config.ElasticsearchConfig,
	productsCollection string,
	logger *zap.Logger,
) *StreamProcessor {
	interval := esCfg.BulkFlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	bulkSize := esCfg.BulkSize
	if bulkSize <= 0 {
		bulkSize = 1
	}

	sp := &StreamProcessor{
		indexer:            indexer,
		changelog:          changelog,
		cache:              cache,
		index:              esCfg.ProductsIndex(),
		productsCollection: productsCollection,
		bulkSize:           bulkSize,
		logger:             logger,
		buffer:             make([]models.IndexAction, 0, bulkSize),
		ticker:             time.NewTicker(interval),
		done:               make(chan struct{}),
		async:              make(chan struct{}, maxAsyncWorkers),
	}

	go sp.flushLoop()

	return sp
}

func (sp *StreamProcessor) HandleEvent(ctx context.Context, event *models.ChangeEvent) error {
	action, err := sp.transformEvent(event)
	if err != nil {
		return fmt.Errorf("transforming event: %w", err)
	}

	if action != nil {
		sp.mu.Lock()
		if len(sp.buffer) >= maxBufferSize {
			sp.mu.Unlock()
			return errBufferFull
		}
		sp.buffer = append(sp.buffer, *action)
		shouldFlush := len(sp.buffer) >= sp.bulkSize
		sp.mu.Unlock()

		if shouldFlush {
			if err := sp.flush(ctx); err != nil {
				sp.logger.Error("flush on buffer full failed", zap.Error(err))
			}
		}
	}

	// Changelog and invalidation are best-effort.
	if sp.changelog != nil {
		sp.goAsync("changelog", func() {
			chCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sp.changelog.InsertDocumentEvent(chCtx, event); err != nil {
				sp.logger.Warn("changelog insert failed",
					zap.String("product_id", event.DocumentID),
					zap.Error(err),
				)
			}
		})
	}

	if sp.cache != nil {
		sp.goAsync("invalidate", func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := sp.cache.InvalidatePattern(cacheCtx, cache.CatalogPatterns); err != nil {
				sp.logger.Warn("cache invalidation failed",
					zap.String("product_id", event.DocumentID),
					zap.Error(err),
				)
			}
		})
	}

	return nil
}

func (sp *StreamProcessor) goAsync(task string, fn func()) {
	select {
	case sp.async <- struct{}{}:
	default:
		observability.IndexingEventsTotal.WithLabelValues(task, "dropped").Inc()
		sp.logger.Warn("async worker pool saturated, dropping task", zap.String("task", task))
		return
	}

	sp.pending.Add(1)
	go func() {
		defer func() {
			<-sp.async
			sp.pending.Done()
		}()
		fn()
	}()
}

// transformEvent returns nil for changes outside the products collection.
func (sp *StreamProcessor) transformEvent(event *models.ChangeEvent) (*models.IndexAction, error) {
	if event.Collection != "" && sp.productsCollection != "" && event.Collection != sp.productsCollection {
		return nil, nil
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	action := &models.IndexAction{
		Index:     sp.index,
		ID:        event.DocumentID,
		Timestamp: ts,
	}

	switch event.Type {
	case models.ChangeCreate, models.ChangeUpdate:
		body, err := searchDocument(event.DocumentID, event.Document)
		if err != nil {
			return nil, err
		}
		action.Action = "index"
		action.Body = body
	case models.ChangeDelete:
		action.Action = "delete"
	default:
		return nil, fmt.Errorf("unknown event type: %s", event.Type)
	}

	return action, nil
}

// searchDocument normalizes a raw catalog document into the indexed product
// shape so the index never carries fields the mapping does not know.
func searchDocument(id string, doc map[string]any) (map[string]any, error) {
	if doc == nil {
		return nil, fmt.Errorf("product %s: change carries no document", id)
	}
	p, err := models.ProductFromDocument(id, doc)
	if err != nil {
		return nil, err
	}
	if p.Name == "" {
		return nil, fmt.Errorf("product %s: missing name", id)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding product %s: %w", id, err)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("encoding product %s: %w", id, err)
	}
	return body, nil
}

func (sp *StreamProcessor) flushLoop() {
	for {
		select {
		case <-sp.ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := sp.flush(ctx); err != nil {
				sp.logger.Error("periodic flush failed", zap.Error(err))
			}
			cancel()
		case <-sp.done:
			return
		}
	}
}

func (sp *StreamProcessor) flush(ctx context.Context) error {
	sp.mu.Lock()
	if len(sp.buffer) == 0 {
		sp.mu.Unlock()
		return nil
	}
	batch := coalesce(sp.buffer)
	sp.buffer = sp.buffer[:0]
	sp.mu.Unlock()

	start := time.Now()
	if err := sp.indexer.BulkIndex(ctx, batch); err != nil {
		// Requeue ahead of anything buffered since, so order per product holds.
		sp.mu.Lock()
		sp.buffer = append(batch, sp.buffer...)
		if over := len(sp.buffer) - maxBufferSize; over > 0 {
			sp.buffer = sp.buffer[over:]
			sp.logger.Error("indexing buffer overflow, dropped oldest actions", zap.Int("dropped", over))
		}
		sp.mu.Unlock()

		observability.IndexingEventsTotal.WithLabelValues("bulk", "error").Inc()
		return fmt.Errorf("bulk index flush: %w", err)
	}

	observability.IndexingEventsTotal.WithLabelValues("bulk", "success").Add(float64(len(batch)))
	sp.logger.Info("bulk flush completed",
		zap.Int("count", len(batch)),
		zap.Duration("duration", time.Since(start)),
	)

	return nil
}

// coalesce keeps only the last action per product, in first-seen order.
func coalesce(actions []models.IndexAction) []models.IndexAction {
	pos := make(map[string]int, len(actions))
	out := make([]models.IndexAction, 0, len(actions))
	for _, a := range actions {
		if i, ok := pos[a.ID]; ok {
			out[i] = a
			continue
		}
		pos[a.ID] = len(out)
		out = append(out, a)
	}
	return out
}

func (sp *StreamProcessor) Stop() error {
	sp.ticker.Stop()
	close(sp.done)
	sp.pending.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return sp.flush(ctx)
}
