package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const StatusPublished = "published"

type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Slug string `json:"slug,omitempty"`
}

type Reviews struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

type ProductAttributes struct {
	Seater   int               `json:"seater,omitempty"`
	Material string            `json:"material,omitempty"`
	Color    string            `json:"color,omitempty"`
	Style    string            `json:"style,omitempty"`
	Room     string            `json:"room,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Product is a catalog document. The search core only reads products; their
// lifecycle is owned by catalog management.
type Product struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Slug            string            `json:"slug,omitempty"`
	Description     string            `json:"description,omitempty"`
	Brand           string            `json:"brand,omitempty"`
	Material        string            `json:"material,omitempty"`
	ColorOptions    []string          `json:"colorOptions,omitempty"`
	Tags            []string          `json:"tags,omitempty"`
	Attributes      ProductAttributes `json:"attributes"`
	Category        CategoryRef       `json:"category"`
	SubCategory     CategoryRef       `json:"subCategory"`
	InStockQuantity int               `json:"inStockQuantity"`
	Featured        bool              `json:"featured"`
	Reviews         Reviews           `json:"reviews"`
	TotalSold       int64             `json:"totalSold"`
	ViewCount       int64             `json:"viewCount"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func (p *Product) IsPublished() bool {
	return p.Status == StatusPublished
}

func (p *Product) InStock() bool {
	return p.InStockQuantity > 0
}

// ScoredProduct is a product annotated with the ranking signals that placed it.
// SearchScore is nil for rows produced by the popularity fallback.
type ScoredProduct struct {
	Product
	SearchScore       *float64 `json:"searchScore,omitempty"`
	RelevanceCategory string   `json:"relevanceCategory,omitempty"`
	IntentMatch       float64  `json:"intentMatch"`
	SortPriority      float64  `json:"sortPriority"`
}

func (sp *ScoredProduct) Score() float64 {
	if sp.SearchScore == nil {
		return 0
	}
	return *sp.SearchScore
}

// ProductFromDocument decodes a loosely typed catalog document, as read from
// Firestore or a change event, into a Product. id wins over any id field.
func ProductFromDocument(id string, doc map[string]any) (Product, error) {
	var p Product
	data, err := json.Marshal(doc)
	if err != nil {
		return p, fmt.Errorf("encoding document %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decoding document %s: %w", id, err)
	}
	if id != "" {
		p.ID = id
	}
	return p, nil
}
