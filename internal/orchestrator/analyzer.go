package orchestrator

import (
	"github.com/shubhsaxena/furniture-search/internal/config"
	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/vocabulary"
)

// Analysis is everything derived from the raw query before any catalog access.
type Analysis struct {
	Query      string
	Tokens     []string
	Classified models.ClassifiedTokens
	Numerics   models.Numerics
	Intent     models.Intent
}

// IsBrowse reports a query with no tokens and no numerics.
func (a *Analysis) IsBrowse() bool {
	return len(a.Tokens) == 0 && a.Numerics.IsEmpty()
}

// HasTerms reports whether the query carried any tokens or numerics.
func (a *Analysis) HasTerms() bool {
	return !a.IsBrowse()
}

// queryKind labels a query by the strongest signal the analysis found.
func queryKind(a *Analysis) string {
	switch {
	case a.IsBrowse():
		return models.QueryKindBrowse
	case a.Intent.Resolved():
		return models.QueryKindIntent
	case len(a.Tokens) == 0:
		return models.QueryKindNumeric
	default:
		return models.QueryKindKeyword
	}
}

// Analyzer bundles the query-understanding stages for one vocabulary snapshot.
type Analyzer struct {
	vocab      *vocabulary.Vocabulary
	normalizer *Normalizer
	classifier *TokenClassifier
	resolver   *IntentResolver
	builder    *QueryBuilder
}

func NewAnalyzer(vocab *vocabulary.Vocabulary, weights config.WeightsConfig) *Analyzer {
	return &Analyzer{
		vocab:      vocab,
		normalizer: NewNormalizer(vocab),
		classifier: NewTokenClassifier(vocab),
		resolver:   NewIntentResolver(vocab),
		builder:    NewQueryBuilder(vocab, weights),
	}
}

// Analyze runs normalization, numeric extraction, classification and intent
// resolution, in that order.
func (an *Analyzer) Analyze(raw string) *Analysis {
	tokens := an.normalizer.Tokenize(raw)
	tokens = dedupe(an.normalizer.ApplySynonyms(tokens))
	tokens, numerics := ExtractNumerics(tokens)
	classified := an.classifier.Classify(tokens)

	return &Analysis{
		Query:      raw,
		Tokens:     tokens,
		Classified: classified,
		Numerics:   numerics,
		Intent:     an.resolver.Resolve(classified, numerics),
	}
}

func (an *Analyzer) Builder() *QueryBuilder {
	return an.builder
}

func (an *Analyzer) Vocabulary() *vocabulary.Vocabulary {
	return an.vocab
}

func dedupe(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
