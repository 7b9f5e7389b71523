package vocabulary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDefault_Lookups(t *testing.T) {
	v := Default()

	if s, ok := v.Synonym("couch"); !ok || s != "sofa" {
		t.Errorf("expected couch -> sofa, got %q (%v)", s, ok)
	}
	if _, ok := v.Synonym("sofa"); ok {
		t.Error("expected no synonym entry for canonical sofa")
	}
	if got := v.Singular("almirahs"); got != "almirah" {
		t.Errorf("expected almirah, got %q", got)
	}
	if got := v.Singular("velvet"); got != "velvet" {
		t.Errorf("expected identity for unknown plural, got %q", got)
	}
	if !v.IsStopWord("set") {
		t.Error("expected set to be a stop word")
	}
	if !v.IsPrimaryType("almirah") {
		t.Error("expected almirah to be a primary type")
	}
	if !v.IsColor("grey") || !v.IsMaterial("leather") {
		t.Error("expected grey color and leather material")
	}
	if g, ok := v.ModifierGroup("sheesham"); !ok || g != "wood" {
		t.Errorf("expected sheesham in wood group, got %q (%v)", g, ok)
	}
	if g, ok := v.ModifierGroup("wood"); !ok || g != "wood" {
		t.Errorf("expected group name to map to itself, got %q (%v)", g, ok)
	}
	if !v.IsSeatable("sofa") || v.IsSeatable("bed") {
		t.Error("unexpected seatable classification")
	}
}

func TestDefault_TaxonomyOrderAndProfiles(t *testing.T) {
	v := Default()
	tax := v.Taxonomy()
	if len(tax) == 0 || tax[0].Name != "sofa" {
		t.Fatalf("expected sofa first in taxonomy, got %+v", tax)
	}

	chair, ok := v.Profile("chair")
	if !ok {
		t.Fatal("expected chair profile")
	}
	found := false
	for _, a := range chair.Avoid {
		if a == "sofa" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected chair to avoid sofa, got %v", chair.Avoid)
	}
	if _, ok := v.Profile("spaceship"); ok {
		t.Error("expected no profile for unknown type")
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		tables Tables
	}{
		{"no primary types", Tables{}},
		{"taxonomy without name", Tables{
			PrimaryTypes: []string{"sofa"},
			Taxonomy:     []TypeProfile{{Primary: []string{"sofa"}}},
		}},
		{"taxonomy without primary terms", Tables{
			PrimaryTypes: []string{"sofa"},
			Taxonomy:     []TypeProfile{{Name: "sofa"}},
		}},
		{"duplicate taxonomy", Tables{
			PrimaryTypes: []string{"sofa"},
			Taxonomy: []TypeProfile{
				{Name: "sofa", Primary: []string{"sofa"}},
				{Name: "Sofa", Primary: []string{"couch"}},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.tables)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestNew_LowercasesAndDefaultsBoost(t *testing.T) {
	v, err := New(Tables{
		PrimaryTypes: []string{" Sofa "},
		Synonyms:     map[string]string{"Couch": "SOFA"},
		Taxonomy:     []TypeProfile{{Name: "Sofa", Primary: []string{"SOFA"}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsPrimaryType("sofa") {
		t.Error("expected lowercased primary type")
	}
	if s, _ := v.Synonym("couch"); s != "sofa" {
		t.Errorf("expected lowercased synonym, got %q", s)
	}
	p, _ := v.Profile("sofa")
	if p.Boost != 1.0 {
		t.Errorf("expected default boost 1.0, got %v", p.Boost)
	}
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	content := `
synonyms:
  lounger: sofa
stop_words: [please]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	v, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s, ok := v.Synonym("lounger"); !ok || s != "sofa" {
		t.Errorf("expected overridden synonym, got %q", s)
	}
	if _, ok := v.Synonym("couch"); ok {
		t.Error("expected synonyms section to be replaced wholesale")
	}
	if !v.IsStopWord("please") || v.IsStopWord("the") {
		t.Error("expected stop words replaced by override")
	}
	if !v.IsPrimaryType("sofa") {
		t.Error("expected untouched sections to keep defaults")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("synonyms: [not, a, map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	v, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsPrimaryType("sofa") {
		t.Error("expected defaults for empty path")
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	if err := os.WriteFile(path, []byte("stop_words: [the]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan *Vocabulary, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zap.NewNop(), func(v *Vocabulary) { updates <- v })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("stop_words: [please]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-updates:
		if !v.IsStopWord("please") {
			t.Error("expected reloaded vocabulary to contain new stop word")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for vocabulary reload")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected nil error on cancel, got %v", err)
	}
}
