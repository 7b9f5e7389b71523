package elasticsearch

import (
	"strings"

	"github.com/shubhsaxena/furniture-search/internal/catalog"
	"github.com/shubhsaxena/furniture-search/internal/config"
	"github.com/shubhsaxena/furniture-search/internal/models"
)

const defaultCandidateLimit = 2000

// substringFields are matched with case-insensitive wildcards so the
// candidate window is a superset of what in-process substring scoring accepts.
var substringFields = []string{
	"name.raw",
	"brand.raw",
	"material.raw",
	"colorOptions",
	"attributes.material.raw",
	"attributes.color.raw",
}

var wildcardEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)

// BuildCandidateQuery turns a candidate filter into a search body. Terms
// widen the match with OR semantics; the seater hint only boosts.
func BuildCandidateQuery(f catalog.CandidateFilter) map[string]any {
	filters := []map[string]any{
		{"term": map[string]any{"status": models.StatusPublished}},
	}

	if f.FeaturedOrInStock {
		filters = append(filters, map[string]any{
			"bool": map[string]any{
				"should": []map[string]any{
					{"term": map[string]any{"featured": true}},
					{"range": map[string]any{"inStockQuantity": map[string]any{"gt": 0}}},
				},
				"minimum_should_match": 1,
			},
		})
	}

	boolQuery := map[string]any{
		"filter": filters,
	}

	if len(f.Terms) > 0 {
		var clauses []map[string]any
		for _, term := range f.Terms {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				continue
			}
			pattern := "*" + wildcardEscaper.Replace(term) + "*"
			for _, field := range substringFields {
				clauses = append(clauses, map[string]any{
					"wildcard": map[string]any{
						field: map[string]any{
							"value":            pattern,
							"case_insensitive": true,
						},
					},
				})
			}
			clauses = append(clauses, map[string]any{
				"term": map[string]any{
					"tags": map[string]any{
						"value":            term,
						"case_insensitive": true,
					},
				},
			})
		}
		if len(clauses) > 0 {
			boolQuery["must"] = []map[string]any{
				{
					"bool": map[string]any{
						"should":               clauses,
						"minimum_should_match": 1,
					},
				},
			}
		}
	}

	if f.Seater != nil {
		boolQuery["should"] = []map[string]any{
			{
				"term": map[string]any{
					"attributes.seater": map[string]any{
						"value": *f.Seater,
						"boost": 2.0,
					},
				},
			},
		}
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	return map[string]any{
		"query": map[string]any{
			"script_score": map[string]any{
				"query": map[string]any{
					"bool": boolQuery,
				},
				"script": map[string]any{
					"source": "_score * (1 + Math.log1p(doc['totalSold'].value))",
				},
			},
		},
		"size":             limit,
		"track_total_hits": false,
		"sort":             windowSort(f.Order),
	}
}

// windowSort orders the candidate window the way the requesting plan ranks,
// so a capped window keeps the products that plan would show first.
func windowSort(order catalog.WindowOrder) []map[string]any {
	desc := func(field string) map[string]any {
		return map[string]any{field: map[string]any{"order": "desc"}}
	}

	switch order {
	case catalog.OrderPopular:
		return []map[string]any{desc("featured"), desc("reviews.average"), desc("createdAt")}
	case catalog.OrderViews:
		return []map[string]any{desc("featured"), desc("viewCount"), desc("reviews.average")}
	case catalog.OrderNewest:
		return []map[string]any{desc("createdAt")}
	default:
		return []map[string]any{desc("_score"), desc("featured"), desc("createdAt")}
	}
}

// ProductsMapping is the index body for the products index. Text fields
// carry a lowercase keyword subfield used by the wildcard prefilter.
func ProductsMapping(cfg config.ElasticsearchConfig) map[string]any {
	textWithRaw := map[string]any{
		"type": "text",
		"fields": map[string]any{
			"raw": map[string]any{
				"type":         "keyword",
				"normalizer":   "lowercase_normalizer",
				"ignore_above": 256,
			},
		},
	}
	categoryRef := map[string]any{
		"properties": map[string]any{
			"id":   map[string]any{"type": "keyword"},
			"name": map[string]any{"type": "keyword"},
			"slug": map[string]any{"type": "keyword"},
		},
	}

	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   cfg.NumShards,
			"number_of_replicas": cfg.NumReplicas,
			"refresh_interval":   cfg.RefreshInterval,
			"analysis": map[string]any{
				"normalizer": map[string]any{
					"lowercase_normalizer": map[string]any{
						"type":   "custom",
						"filter": []string{"lowercase", "asciifolding"},
					},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":           map[string]any{"type": "keyword"},
				"name":         textWithRaw,
				"slug":         map[string]any{"type": "keyword"},
				"description":  map[string]any{"type": "text"},
				"brand":        textWithRaw,
				"material":     textWithRaw,
				"colorOptions": map[string]any{"type": "keyword", "normalizer": "lowercase_normalizer"},
				"tags":         map[string]any{"type": "keyword", "normalizer": "lowercase_normalizer"},
				"attributes": map[string]any{
					"properties": map[string]any{
						"seater":   map[string]any{"type": "integer"},
						"material": textWithRaw,
						"color":    textWithRaw,
						"style":    map[string]any{"type": "keyword"},
						"room":     map[string]any{"type": "keyword"},
					},
				},
				"category":        categoryRef,
				"subCategory":     categoryRef,
				"inStockQuantity": map[string]any{"type": "integer"},
				"featured":        map[string]any{"type": "boolean"},
				"reviews": map[string]any{
					"properties": map[string]any{
						"average": map[string]any{"type": "float"},
						"count":   map[string]any{"type": "integer"},
					},
				},
				"totalSold": map[string]any{"type": "long"},
				"viewCount": map[string]any{"type": "long"},
				"status":    map[string]any{"type": "keyword"},
				"createdAt": map[string]any{"type": "date"},
				"updatedAt": map[string]any{"type": "date"},
			},
		},
	}
}
