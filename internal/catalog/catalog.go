// Package catalog executes relevance plans against a source of published
// products. Sources only narrow the candidate window; every scoring, gating
// and ordering decision is made by the plan in process.
package catalog

import (
	"context"
	"errors"

	"github.com/shubhsaxena/furniture-search/internal/models"
)

var ErrNotFound = errors.New("catalog: not found")

// WindowOrder tells a source which products to keep when more candidates
// match than Limit allows. It approximates the plan's own ordering so the
// window holds the products the plan would rank first.
type WindowOrder int

const (
	// OrderRelevance prefers term matches, then best sellers.
	OrderRelevance WindowOrder = iota
	// OrderPopular prefers featured, then highly rated, then newest.
	OrderPopular
	// OrderViews prefers featured, then most viewed, then highly rated.
	OrderViews
	// OrderNewest prefers the most recently created.
	OrderNewest
)

func (o WindowOrder) String() string {
	switch o {
	case OrderPopular:
		return "popular"
	case OrderViews:
		return "views"
	case OrderNewest:
		return "newest"
	default:
		return "relevance"
	}
}

// CandidateFilter narrows the published products a source returns. A product
// matches Terms when one term is a case-insensitive substring of its name,
// brand, material or colors, or equals one of its tags. A source must return
// every matching published product, up to Limit. Seater is a ranking hint.
type CandidateFilter struct {
	Terms             []string
	Seater            *int
	FeaturedOrInStock bool
	Order             WindowOrder
	Limit             int
}

// Source yields published products.
type Source interface {
	Published(ctx context.Context, f CandidateFilter) ([]models.Product, error)
}

// CategoryResolver looks up display data for category and subcategory ids.
type CategoryResolver interface {
	ResolveCategories(ctx context.Context, ids []string) (map[string]models.CategoryRef, error)
}

// Plan scores, gates and orders candidates for one stage of a search.
type Plan interface {
	Stage() models.Stage
	Filter() CandidateFilter
	// Evaluate returns the scored product and whether it passes the plan's gate.
	Evaluate(p *models.Product) (models.ScoredProduct, bool)
	// Less reports whether a sorts before b. It must be a total order.
	Less(a, b *models.ScoredProduct) bool
	// Cap bounds the whole result set; zero means unbounded.
	Cap() int
}
