package orchestrator

import (
	"math"

	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/vocabulary"
)

const (
	confidenceLiteral   = 1.0
	confidencePrimary   = 0.8
	confidenceSecondary = 0.6
	seatableBoost       = 0.2
)

// IntentResolver picks the product type a query is most likely about.
type IntentResolver struct {
	vocab *vocabulary.Vocabulary
}

func NewIntentResolver(vocab *vocabulary.Vocabulary) *IntentResolver {
	return &IntentResolver{vocab: vocab}
}

// Resolve returns the primary type hypothesis and its confidence.
//
// A literal product-type token wins outright. Otherwise modifiers and then
// regular tokens are scanned against the taxonomy: the first primary-term
// match settles the intent at 0.8 and ends the scan, while the first
// secondary-term match is only provisional at 0.6 and can still be replaced
// by a later primary-term match. A seater count on a seatable type adds 0.2.
func (ir *IntentResolver) Resolve(ct models.ClassifiedTokens, numerics models.Numerics) (intent models.Intent) {
	defer func() {
		if r := recover(); r != nil {
			intent = models.Intent{}
		}
	}()

	if len(ct.Primary) > 0 {
		intent = models.Intent{PrimaryType: ct.Primary[0], Confidence: confidenceLiteral}
	} else {
		intent = ir.scanTaxonomy(ct)
	}

	if numerics.Seater != nil && intent.Resolved() && ir.vocab.IsSeatable(intent.PrimaryType) {
		intent.Confidence = math.Min(1.0, intent.Confidence+seatableBoost)
	}
	return intent
}

func (ir *IntentResolver) scanTaxonomy(ct models.ClassifiedTokens) models.Intent {
	var intent models.Intent

	scan := make([]string, 0, len(ct.Modifiers)+len(ct.Regular))
	scan = append(scan, ct.Modifiers...)
	scan = append(scan, ct.Regular...)

	taxonomy := ir.vocab.Taxonomy()
	for _, tok := range scan {
		if name, ok := findTerm(taxonomy, tok, func(p vocabulary.TypeProfile) []string { return p.Primary }); ok {
			return models.Intent{PrimaryType: name, Confidence: confidencePrimary}
		}
		if intent.Resolved() {
			continue
		}
		if name, ok := findTerm(taxonomy, tok, func(p vocabulary.TypeProfile) []string { return p.Secondary }); ok {
			intent = models.Intent{PrimaryType: name, Confidence: confidenceSecondary}
		}
	}
	return intent
}

func findTerm(taxonomy []vocabulary.TypeProfile, tok string, terms func(vocabulary.TypeProfile) []string) (string, bool) {
	for _, profile := range taxonomy {
		for _, term := range terms(profile) {
			if term == tok {
				return profile.Name, true
			}
		}
	}
	return "", false
}
