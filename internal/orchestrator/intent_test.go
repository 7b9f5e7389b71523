package orchestrator

import (
	"math"
	"testing"

	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/vocabulary"
)

func intPtr(n int) *int { return &n }

func classified(primary, modifiers, regular []string) models.ClassifiedTokens {
	ct := models.NewClassifiedTokens()
	ct.Primary = append(ct.Primary, primary...)
	ct.Modifiers = append(ct.Modifiers, modifiers...)
	ct.Regular = append(ct.Regular, regular...)
	return ct
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestIntentResolver_Resolve(t *testing.T) {
	ir := NewIntentResolver(vocabulary.Default())

	tests := []struct {
		name       string
		ct         models.ClassifiedTokens
		numerics   models.Numerics
		wantType   string
		wantConfid float64
	}{
		{
			name:       "literal primary token",
			ct:         classified([]string{"chair"}, []string{"leather"}, []string{"dining"}),
			wantType:   "chair",
			wantConfid: 1.0,
		},
		{
			name:       "first literal wins",
			ct:         classified([]string{"bed", "sofa"}, nil, nil),
			wantType:   "bed",
			wantConfid: 1.0,
		},
		{
			name:       "taxonomy primary term",
			ct:         classified(nil, nil, []string{"loveseat"}),
			wantType:   "sofa",
			wantConfid: 0.8,
		},
		{
			name:       "taxonomy secondary term",
			ct:         classified(nil, nil, []string{"dining"}),
			wantType:   "table",
			wantConfid: 0.6,
		},
		{
			name:       "later primary overrides earlier secondary",
			ct:         classified(nil, nil, []string{"dining", "loveseat"}),
			wantType:   "sofa",
			wantConfid: 0.8,
		},
		{
			name:       "later secondary ignored after primary",
			ct:         classified(nil, nil, []string{"loveseat", "dining"}),
			wantType:   "sofa",
			wantConfid: 0.8,
		},
		{
			name:       "first secondary kept over later secondary",
			ct:         classified(nil, nil, []string{"dining", "lounge"}),
			wantType:   "table",
			wantConfid: 0.6,
		},
		{
			name:       "modifiers scanned before regular",
			ct:         classified(nil, []string{"headboard"}, []string{"lounge"}),
			wantType:   "bed",
			wantConfid: 0.6,
		},
		{
			name:       "seater boost on seatable type",
			ct:         classified(nil, nil, []string{"lounge"}),
			numerics:   models.Numerics{Seater: intPtr(3)},
			wantType:   "sofa",
			wantConfid: 0.8,
		},
		{
			name:       "seater boost capped",
			ct:         classified([]string{"sofa"}, nil, nil),
			numerics:   models.Numerics{Seater: intPtr(3)},
			wantType:   "sofa",
			wantConfid: 1.0,
		},
		{
			name:       "no boost for non seatable type",
			ct:         classified(nil, nil, []string{"dining"}),
			numerics:   models.Numerics{Seater: intPtr(6)},
			wantType:   "table",
			wantConfid: 0.6,
		},
		{
			name:       "unresolved",
			ct:         classified(nil, []string{"grey"}, []string{"xyzzynonsense"}),
			numerics:   models.Numerics{Seater: intPtr(2)},
			wantType:   "",
			wantConfid: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ir.Resolve(tt.ct, tt.numerics)
			if got.PrimaryType != tt.wantType {
				t.Errorf("primaryType = %q, want %q", got.PrimaryType, tt.wantType)
			}
			if !approxEqual(got.Confidence, tt.wantConfid) {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConfid)
			}
		})
	}
}

func TestIntentResolver_LiteralAlwaysFullConfidence(t *testing.T) {
	ir := NewIntentResolver(vocabulary.Default())
	others := [][]string{{}, {"dining"}, {"loveseat", "lounge"}, {"xyzzy"}}

	for _, regular := range others {
		got := ir.Resolve(classified([]string{"table"}, []string{"oak"}, regular), models.Numerics{})
		if got.Confidence != 1.0 || got.PrimaryType != "table" {
			t.Errorf("expected table at 1.0 with regular %v, got %+v", regular, got)
		}
	}
}

func TestIntentResolver_FailureYieldsNull(t *testing.T) {
	ir := &IntentResolver{}
	got := ir.Resolve(classified(nil, nil, []string{"dining"}), models.Numerics{})
	if got.Resolved() || got.Confidence != 0 {
		t.Errorf("expected unresolved intent on failure, got %+v", got)
	}
}
