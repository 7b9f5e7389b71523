package orchestrator

import (
	"regexp"
	"strings"

	"github.com/shubhsaxena/furniture-search/internal/vocabulary"
)

var (
	disallowedChars   = regexp.MustCompile(`[^\w\s-]`)
	multiSpacePattern = regexp.MustCompile(`\s+`)
	tokenSeparators   = regexp.MustCompile(`[\s,-]+`)
)

// Normalizer turns raw query text into canonical tokens.
type Normalizer struct {
	vocab *vocabulary.Vocabulary
}

func NewNormalizer(vocab *vocabulary.Vocabulary) *Normalizer {
	return &Normalizer{vocab: vocab}
}

// Tokenize lowercases raw, strips punctuation, splits on spaces, commas and
// hyphens, folds plurals to their singular form and removes duplicates while
// keeping first-occurrence order. Empty input yields an empty slice.
func (n *Normalizer) Tokenize(raw string) []string {
	tokens := []string{}
	text := strings.ToLower(raw)
	text = disallowedChars.ReplaceAllString(text, "")
	text = multiSpacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if text == "" {
		return tokens
	}

	seen := make(map[string]bool)
	for _, part := range tokenSeparators.Split(text, -1) {
		if part == "" {
			continue
		}
		tok := n.vocab.Singular(part)
		if seen[tok] {
			continue
		}
		seen[tok] = true
		tokens = append(tokens, tok)
	}
	return tokens
}

// ApplySynonyms maps every token to its canonical synonym. On any failure the
// input is returned unchanged.
func (n *Normalizer) ApplySynonyms(tokens []string) (out []string) {
	defer func() {
		if r := recover(); r != nil {
			out = tokens
		}
	}()

	out = make([]string, len(tokens))
	for i, tok := range tokens {
		if canonical, ok := n.vocab.Synonym(tok); ok {
			out[i] = canonical
			continue
		}
		out[i] = tok
	}
	return out
}
