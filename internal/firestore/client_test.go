package firestore

import (
	"testing"
	"time"

	"cloud.google.com/go/firestore"
)

func TestChangeEvent(t *testing.T) {
	updated := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	data := map[string]any{"name": "Grey Sofa"}

	tests := []struct {
		kind     firestore.DocumentChangeKind
		wantType string
		wantDoc  bool
	}{
		{firestore.DocumentAdded, "CREATE", true},
		{firestore.DocumentModified, "UPDATE", true},
		{firestore.DocumentRemoved, "DELETE", false},
	}

	for _, tt := range tests {
		t.Run(tt.wantType, func(t *testing.T) {
			ev := changeEvent("products", tt.kind, "p1", data, updated)
			if ev.Type != tt.wantType {
				t.Errorf("expected %s, got %s", tt.wantType, ev.Type)
			}
			if ev.DocumentID != "p1" || ev.Collection != "products" {
				t.Errorf("unexpected identity %+v", ev)
			}
			if (ev.Document != nil) != tt.wantDoc {
				t.Errorf("document present = %v, want %v", ev.Document != nil, tt.wantDoc)
			}
			if ev.Version != updated.UnixNano() {
				t.Errorf("expected version from update time, got %d", ev.Version)
			}
		})
	}

	if ev := changeEvent("products", firestore.DocumentAdded, "p2", data, time.Time{}); ev.Version != 0 {
		t.Errorf("expected zero version without update time, got %d", ev.Version)
	}
}

func TestCategoryRef(t *testing.T) {
	ref := categoryRef("c1", map[string]any{"name": "Living Room", "slug": "living-room", "order": 3})
	if ref.ID != "c1" || ref.Name != "Living Room" || ref.Slug != "living-room" {
		t.Errorf("unexpected ref %+v", ref)
	}

	ref = categoryRef("c2", map[string]any{"name": 42})
	if ref.ID != "c2" || ref.Name != "" {
		t.Errorf("expected non-string fields ignored, got %+v", ref)
	}
}
