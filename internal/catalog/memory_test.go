package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shubhsaxena/furniture-search/internal/models"
)

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		wantProducts   int
		wantCategories int
	}{
		{
			name:           "object layout",
			content:        `{"products":[{"id":"p1","name":"Sofa","status":"published"}],"categories":[{"id":"c1","name":"Living"}]}`,
			wantProducts:   1,
			wantCategories: 1,
		},
		{
			name:         "bare array",
			content:      `[{"id":"p1","name":"Sofa","status":"published"},{"id":"p2","name":"Bed","status":"draft"}]`,
			wantProducts: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "catalog.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			store, err := LoadFile(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if store.Len() != tt.wantProducts {
				t.Errorf("expected %d products, got %d", tt.wantProducts, store.Len())
			}
			refs, _ := store.ResolveCategories(context.Background(), []string{"c1"})
			if len(refs) != tt.wantCategories {
				t.Errorf("expected %d categories, got %d", tt.wantCategories, len(refs))
			}
		})
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed file")
	}
}

func TestMemoryStore_Published(t *testing.T) {
	out := published("out", "Out")
	out.InStockQuantity = 0
	draft := published("draft", "Draft")
	draft.Status = "draft"
	store := NewMemoryStore([]models.Product{published("a", "A"), out, draft, published("b", "B")}, nil)

	all, err := store.Published(context.Background(), CandidateFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 published products, got %d", len(all))
	}

	stocked, _ := store.Published(context.Background(), CandidateFilter{FeaturedOrInStock: true})
	if len(stocked) != 2 {
		t.Errorf("expected 2 featured or in-stock products, got %d", len(stocked))
	}

	limited, _ := store.Published(context.Background(), CandidateFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected one product, got %v", limited)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Published(ctx, CandidateFilter{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context error, got %v", err)
	}
}

func TestMemoryStore_Mutations(t *testing.T) {
	store := NewMemoryStore([]models.Product{published("a", "A")}, nil)

	updated := published("a", "A v2")
	store.Upsert(updated)
	store.Upsert(published("b", "B"))
	if store.Len() != 2 {
		t.Fatalf("expected 2 products, got %d", store.Len())
	}
	got, err := store.Get("a")
	if err != nil || got.Name != "A v2" {
		t.Errorf("expected updated product, got %+v, %v", got, err)
	}

	if err := store.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete("zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_PublishedMatchesTermsBeforeLimit(t *testing.T) {
	chair := published("a", "Accent Chair")
	bed := published("b", "Walnut Bed")
	sofa := published("c", "Grey Fabric 3-Seater Sofa")
	tagged := published("d", "Chesterfield")
	tagged.Tags = []string{"Sofa"}
	colored := published("e", "Armchair")
	colored.ColorOptions = []string{"Sofa Grey"}
	store := NewMemoryStore([]models.Product{chair, bed, sofa, tagged, colored}, nil)

	got, err := store.Published(context.Background(), CandidateFilter{Terms: []string{"sofa"}, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 products, got %d", len(got))
	}
	for _, p := range got {
		if p.ID == "a" || p.ID == "b" {
			t.Errorf("non-matching product %s in window", p.ID)
		}
	}

	all, _ := store.Published(context.Background(), CandidateFilter{Terms: []string{"SOFA", "walnut"}})
	if len(all) != 4 {
		t.Errorf("expected 4 products matching either term, got %d", len(all))
	}
}

func TestMemoryStore_WindowOrder(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	old := published("old", "Old Sofa")
	old.CreatedAt = base
	old.ViewCount = 900
	old.Reviews.Average = 4.9
	old.TotalSold = 500
	fresh := published("fresh", "Fresh Sofa")
	fresh.CreatedAt = base.AddDate(0, 6, 0)
	fresh.ViewCount = 10
	fresh.Reviews.Average = 3.0
	fresh.TotalSold = 5
	featured := published("featured", "Featured Chair")
	featured.CreatedAt = base.AddDate(0, 1, 0)
	featured.Featured = true
	store := NewMemoryStore([]models.Product{fresh, featured, old}, nil)

	tests := []struct {
		name   string
		filter CandidateFilter
		want   []string
	}{
		{"newest", CandidateFilter{Order: OrderNewest, Limit: 2}, []string{"fresh", "featured"}},
		{"popular", CandidateFilter{Order: OrderPopular, Limit: 2}, []string{"featured", "old"}},
		{"views", CandidateFilter{Order: OrderViews, Limit: 2}, []string{"featured", "old"}},
		{"relevance prefers more term hits", CandidateFilter{Terms: []string{"sofa", "fresh"}, Limit: 1}, []string{"fresh"}},
		{"relevance falls back to sales", CandidateFilter{Terms: []string{"sofa"}, Limit: 1}, []string{"old"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Published(context.Background(), tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %d products", tt.want, len(got))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tt.want[i], got[i].ID)
				}
			}
		})
	}
}
