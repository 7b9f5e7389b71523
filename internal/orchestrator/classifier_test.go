package orchestrator

import (
	"reflect"
	"testing"

	"github.com/shubhsaxena/furniture-search/internal/vocabulary"
)

func TestTokenClassifier_Buckets(t *testing.T) {
	tc := NewTokenClassifier(vocabulary.Default())

	ct := tc.Classify([]string{"the", "sofa", "grey", "leather", "large", "3seater", "teak", "recliner", "seater", "chesterfield", "set"})

	wantPrimary := []string{"sofa", "recliner"}
	wantModifiers := []string{"grey", "leather", "large", "3seater", "teak"}
	wantStop := []string{"the", "set"}
	wantRegular := []string{"seater", "chesterfield"}

	if !reflect.DeepEqual(ct.Primary, wantPrimary) {
		t.Errorf("primary = %v, want %v", ct.Primary, wantPrimary)
	}
	if !reflect.DeepEqual(ct.Modifiers, wantModifiers) {
		t.Errorf("modifiers = %v, want %v", ct.Modifiers, wantModifiers)
	}
	if !reflect.DeepEqual(ct.StopWords, wantStop) {
		t.Errorf("stop words = %v, want %v", ct.StopWords, wantStop)
	}
	if !reflect.DeepEqual(ct.Regular, wantRegular) {
		t.Errorf("regular = %v, want %v", ct.Regular, wantRegular)
	}
}

func TestTokenClassifier_ModifierBranches(t *testing.T) {
	tc := NewTokenClassifier(vocabulary.Default())

	tests := []struct {
		token    string
		modifier bool
	}{
		{"4seat", true},
		{"2seater", true},
		{"small", true},
		{"xxl", true},
		{"velvet", true},   // material list
		{"mustard", true},  // color list
		{"charcoal", true}, // color synonym group only
		{"acacia", true},   // material synonym group only
		{"seater", false},
		{"extra", false},
		{"xxxl", false},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			if got := tc.isModifier(tt.token); got != tt.modifier {
				t.Errorf("isModifier(%q) = %v, want %v", tt.token, got, tt.modifier)
			}
		})
	}
}

func TestTokenClassifier_Partition(t *testing.T) {
	tc := NewTokenClassifier(vocabulary.Default())

	inputs := [][]string{
		{},
		{"sofa"},
		{"the", "a", "for"},
		{"grey", "fabric", "seater", "sofa", "with", "cushion"},
		{"xyzzynonsense", "blue", "bed", "king", "set"},
	}

	for _, tokens := range inputs {
		ct := tc.Classify(tokens)
		if ct.Len() != len(tokens) {
			t.Errorf("partition of %v has %d tokens, want %d", tokens, ct.Len(), len(tokens))
		}

		counts := make(map[string]int)
		for _, bucket := range [][]string{ct.Primary, ct.Modifiers, ct.StopWords, ct.Regular} {
			for _, tok := range bucket {
				counts[tok]++
			}
		}
		for _, tok := range tokens {
			if counts[tok] != 1 {
				t.Errorf("token %q appears %d times across buckets", tok, counts[tok])
			}
		}
	}
}

func TestTokenClassifier_StopWordBeatsPrimary(t *testing.T) {
	v, err := vocabulary.New(vocabulary.Tables{
		PrimaryTypes: []string{"sofa", "set"},
		StopWords:    []string{"set"},
	})
	if err != nil {
		t.Fatal(err)
	}
	ct := NewTokenClassifier(v).Classify([]string{"set", "sofa"})
	if !reflect.DeepEqual(ct.StopWords, []string{"set"}) {
		t.Errorf("expected set as stop word, got %+v", ct)
	}
}

func TestTokenClassifier_FailureTreatsAllAsPrimary(t *testing.T) {
	tc := &TokenClassifier{}
	tokens := []string{"grey", "sofa"}
	ct := tc.Classify(tokens)
	if !reflect.DeepEqual(ct.Primary, tokens) {
		t.Errorf("expected all tokens primary on failure, got %+v", ct)
	}
	if ct.Len() != len(tokens) {
		t.Errorf("expected %d tokens, got %d", len(tokens), ct.Len())
	}
}
