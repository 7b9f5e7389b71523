package catalog

import (
	"sort"
	"strings"

	"github.com/shubhsaxena/furniture-search/internal/models"
)

// MatchesTerms reports whether p matches at least one term. No terms matches
// everything.
func MatchesTerms(p *models.Product, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	return termHits(p, terms) > 0
}

func termHits(p *models.Product, terms []string) int {
	fields := []string{
		strings.ToLower(p.Name),
		strings.ToLower(p.Brand),
		strings.ToLower(p.Material),
		strings.ToLower(p.Attributes.Material),
		strings.ToLower(p.Attributes.Color),
	}
	for _, c := range p.ColorOptions {
		fields = append(fields, strings.ToLower(c))
	}

	hits := 0
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if anyFieldContains(fields, term) || hasTagFold(p.Tags, term) {
			hits++
		}
	}
	return hits
}

func anyFieldContains(fields []string, term string) bool {
	for _, f := range fields {
		if strings.Contains(f, term) {
			return true
		}
	}
	return false
}

func hasTagFold(tags []string, term string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, term) {
			return true
		}
	}
	return false
}

// trimWindow keeps the first limit products under the filter's window order.
func trimWindow(products []models.Product, f CandidateFilter) []models.Product {
	if f.Limit <= 0 || len(products) <= f.Limit {
		return products
	}

	less := windowLess(f)
	sort.SliceStable(products, func(i, j int) bool {
		return less(&products[i], &products[j])
	})
	return products[:f.Limit]
}

func windowLess(f CandidateFilter) func(a, b *models.Product) bool {
	switch f.Order {
	case OrderPopular:
		return func(a, b *models.Product) bool {
			if a.Featured != b.Featured {
				return a.Featured
			}
			if a.Reviews.Average != b.Reviews.Average {
				return a.Reviews.Average > b.Reviews.Average
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
	case OrderViews:
		return func(a, b *models.Product) bool {
			if a.Featured != b.Featured {
				return a.Featured
			}
			if a.ViewCount != b.ViewCount {
				return a.ViewCount > b.ViewCount
			}
			return a.Reviews.Average > b.Reviews.Average
		}
	case OrderNewest:
		return func(a, b *models.Product) bool {
			return a.CreatedAt.After(b.CreatedAt)
		}
	default:
		return func(a, b *models.Product) bool {
			ah, bh := termHits(a, f.Terms), termHits(b, f.Terms)
			if ah != bh {
				return ah > bh
			}
			if f.Seater != nil {
				as, bs := a.Attributes.Seater == *f.Seater, b.Attributes.Seater == *f.Seater
				if as != bs {
					return as
				}
			}
			return a.TotalSold > b.TotalSold
		}
	}
}
