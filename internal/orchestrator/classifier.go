package orchestrator

import (
	"regexp"

	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/vocabulary"
)

var (
	seaterModifierPattern = regexp.MustCompile(`^\d+(seater|seat)$`)
	sizeClassPattern      = regexp.MustCompile(`^(small|medium|large|xl|xxl)$`)
)

// TokenClassifier partitions tokens into primary, modifier, stop-word and
// regular buckets.
type TokenClassifier struct {
	vocab *vocabulary.Vocabulary
}

func NewTokenClassifier(vocab *vocabulary.Vocabulary) *TokenClassifier {
	return &TokenClassifier{vocab: vocab}
}

// Classify assigns every token to exactly one bucket, checked in the order
// stop word, primary type, modifier, regular. If classification fails every
// token is reported as primary.
func (tc *TokenClassifier) Classify(tokens []string) (ct models.ClassifiedTokens) {
	defer func() {
		if r := recover(); r != nil {
			ct = models.NewClassifiedTokens()
			ct.Primary = append(ct.Primary, tokens...)
		}
	}()

	ct = models.NewClassifiedTokens()
	for _, tok := range tokens {
		switch {
		case tc.vocab.IsStopWord(tok):
			ct.StopWords = append(ct.StopWords, tok)
		case tc.vocab.IsPrimaryType(tok):
			ct.Primary = append(ct.Primary, tok)
		case tc.isModifier(tok):
			ct.Modifiers = append(ct.Modifiers, tok)
		default:
			ct.Regular = append(ct.Regular, tok)
		}
	}
	return ct
}

func (tc *TokenClassifier) isModifier(tok string) bool {
	if seaterModifierPattern.MatchString(tok) || sizeClassPattern.MatchString(tok) {
		return true
	}
	if _, ok := tc.vocab.ModifierGroup(tok); ok {
		return true
	}
	return tc.vocab.IsColor(tok) || tc.vocab.IsMaterial(tok)
}
