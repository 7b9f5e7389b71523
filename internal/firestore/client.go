package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/shubhsaxena/furniture-search/internal/catalog"
	"github.com/shubhsaxena/furniture-search/internal/config"
	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/observability"
)

// Client reads the catalog of record: products, categories and subcategories.
type Client struct {
	client *firestore.Client
	cfg    config.FirestoreConfig
	logger *zap.Logger
}

var (
	_ catalog.Source           = (*Client)(nil)
	_ catalog.CategoryResolver = (*Client)(nil)
)

func NewClient(ctx context.Context, cfg config.FirestoreConfig, logger *zap.Logger) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	logger.Info("firestore client connected", zap.String("project", cfg.ProjectID))

	return &Client{
		client: client,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Published reads published products straight from the products collection.
// It ignores term and seater hints.
func (c *Client) Published(ctx context.Context, f catalog.CandidateFilter) ([]models.Product, error) {
	ctx, span := observability.StartSpan(ctx, "firestore.published",
		attribute.String("collection", c.cfg.ProductsCollection),
		attribute.Int("limit", f.Limit),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	q := c.client.Collection(c.cfg.ProductsCollection).Where("status", "==", models.StatusPublished)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var products []models.Product
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore list %s: %w", c.cfg.ProductsCollection, err)
		}

		p, err := models.ProductFromDocument(doc.Ref.ID, doc.Data())
		if err != nil {
			c.logger.Warn("skipping undecodable product", zap.String("doc_id", doc.Ref.ID), zap.Error(err))
			continue
		}
		if f.FeaturedOrInStock && !p.Featured && !p.InStock() {
			continue
		}
		products = append(products, p)
	}

	return products, nil
}

// ResolveCategories looks ids up in the categories collection and then the
// subcategories collection; a category wins when both hold the id.
func (c *Client) ResolveCategories(ctx context.Context, ids []string) (map[string]models.CategoryRef, error) {
	refs := make(map[string]models.CategoryRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	for _, collection := range []string{c.cfg.CategoriesCollection, c.cfg.SubCategoryCollection} {
		var missing []string
		for _, id := range ids {
			if _, ok := refs[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) == 0 {
			break
		}

		docs, err := c.GetMulti(ctx, collection, missing)
		if err != nil {
			return nil, err
		}
		for id, data := range docs {
			refs[id] = categoryRef(id, data)
		}
	}

	return refs, nil
}

func categoryRef(id string, data map[string]any) models.CategoryRef {
	ref := models.CategoryRef{ID: id}
	if v, ok := data["name"].(string); ok {
		ref.Name = v
	}
	if v, ok := data["slug"].(string); ok {
		ref.Slug = v
	}
	return ref
}

func (c *Client) GetMulti(ctx context.Context, collection string, docIDs []string) (map[string]map[string]any, error) {
	ctx, span := observability.StartSpan(ctx, "firestore.get_multi",
		attribute.String("collection", collection),
		attribute.Int("count", len(docIDs)),
	)
	defer span.End()

	result := make(map[string]map[string]any, len(docIDs))

	batchSize := c.cfg.MaxBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	for i := 0; i < len(docIDs); i += batchSize {
		end := i + batchSize
		if end > len(docIDs) {
			end = len(docIDs)
		}
		batch := docIDs[i:end]

		// Each batch gets its own timeout so sequential batches don't starve.
		batchCtx, batchCancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)

		refs := make([]*firestore.DocumentRef, len(batch))
		for j, id := range batch {
			refs[j] = c.client.Collection(collection).Doc(id)
		}

		docs, err := c.client.GetAll(batchCtx, refs)
		batchCancel()
		if err != nil {
			return nil, fmt.Errorf("firestore get_all %s batch %d: %w", collection, i/batchSize, err)
		}

		for _, doc := range docs {
			if doc.Exists() {
				result[doc.Ref.ID] = doc.Data()
			}
		}
	}

	return result, nil
}

type ChangeListener struct {
	client     *firestore.Client
	collection string
	logger     *zap.Logger
	handler    func(context.Context, *models.ChangeEvent) error
}

func (c *Client) NewChangeListener(collection string, handler func(context.Context, *models.ChangeEvent) error) *ChangeListener {
	return &ChangeListener{
		client:     c.client,
		collection: collection,
		logger:     c.logger,
		handler:    handler,
	}
}

// Listen streams document changes to the handler until ctx is done.
func (cl *ChangeListener) Listen(ctx context.Context) error {
	snapIter := cl.client.Collection(cl.collection).Snapshots(ctx)
	defer snapIter.Stop()

	for {
		snap, err := snapIter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cl.logger.Error("snapshot iterator error", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, change := range snap.Changes {
			event := changeEvent(cl.collection, change.Kind, change.Doc.Ref.ID, change.Doc.Data(), change.Doc.UpdateTime)
			if err := cl.handler(ctx, event); err != nil {
				cl.logger.Error("change event handler error",
					zap.String("doc_id", event.DocumentID),
					zap.String("type", event.Type),
					zap.Error(err),
				)
			}
		}
	}
}

func changeEvent(collection string, kind firestore.DocumentChangeKind, id string, data map[string]any, updated time.Time) *models.ChangeEvent {
	var eventType string
	switch kind {
	case firestore.DocumentAdded:
		eventType = models.ChangeCreate
	case firestore.DocumentModified:
		eventType = models.ChangeUpdate
	case firestore.DocumentRemoved:
		eventType = models.ChangeDelete
	}

	event := &models.ChangeEvent{
		Type:       eventType,
		DocumentID: id,
		Collection: collection,
		Timestamp:  time.Now().UTC(),
	}
	if eventType != models.ChangeDelete {
		event.Document = data
	}
	if !updated.IsZero() {
		event.Version = updated.UnixNano()
	}
	return event
}

func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	iter := c.client.Collection(c.cfg.ProductsCollection).Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	// iterator.Done means the collection is empty; Firestore is reachable.
	if err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore health check: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
