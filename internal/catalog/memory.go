package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/shubhsaxena/furniture-search/internal/models"
)

// MemoryStore is an in-process Source and CategoryResolver.
type MemoryStore struct {
	mu         sync.RWMutex
	products   []models.Product
	categories map[string]models.CategoryRef
}

// catalogFile is the on-disk layout read by LoadFile.
type catalogFile struct {
	Products   []models.Product     `json:"products"`
	Categories []models.CategoryRef `json:"categories"`
}

func NewMemoryStore(products []models.Product, categories []models.CategoryRef) *MemoryStore {
	ms := &MemoryStore{categories: make(map[string]models.CategoryRef, len(categories))}
	ms.products = append(ms.products, products...)
	for _, c := range categories {
		ms.categories[c.ID] = c
	}
	return ms
}

// LoadFile reads a JSON catalog: either {"products": [...], "categories": [...]}
// or a bare array of products.
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var file catalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		var bare []models.Product
		if errArr := json.Unmarshal(data, &bare); errArr != nil {
			return nil, fmt.Errorf("parsing catalog file %s: %w", path, err)
		}
		file.Products = bare
	}

	return NewMemoryStore(file.Products, file.Categories), nil
}

func (ms *MemoryStore) Published(ctx context.Context, f CandidateFilter) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]models.Product, 0, len(ms.products))
	for _, p := range ms.products {
		if !p.IsPublished() {
			continue
		}
		if f.FeaturedOrInStock && !p.Featured && !p.InStock() {
			continue
		}
		if !MatchesTerms(&p, f.Terms) {
			continue
		}
		out = append(out, p)
	}
	return trimWindow(out, f), nil
}

func (ms *MemoryStore) ResolveCategories(ctx context.Context, ids []string) (map[string]models.CategoryRef, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	refs := make(map[string]models.CategoryRef, len(ids))
	for _, id := range ids {
		if c, ok := ms.categories[id]; ok {
			refs[id] = c
		}
	}
	return refs, nil
}

// Get returns a product by id.
func (ms *MemoryStore) Get(id string) (models.Product, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	for _, p := range ms.products {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Product{}, fmt.Errorf("product %s: %w", id, ErrNotFound)
}

// Upsert replaces the product with the same id or appends it.
func (ms *MemoryStore) Upsert(p models.Product) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i := range ms.products {
		if ms.products[i].ID == p.ID {
			ms.products[i] = p
			return
		}
	}
	ms.products = append(ms.products, p)
}

func (ms *MemoryStore) Delete(id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	for i := range ms.products {
		if ms.products[i].ID == id {
			ms.products = append(ms.products[:i], ms.products[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("product %s: %w", id, ErrNotFound)
}

func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.products)
}
