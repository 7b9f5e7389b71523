// Package vocabulary holds the static tables that drive query understanding:
// synonyms, plural folding, stop words, product types, modifier vocabularies and
// the product-hierarchy taxonomy. A Vocabulary is immutable once built; reloading
// produces a new value that callers swap in wholesale.
package vocabulary

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalid = errors.New("invalid vocabulary")

// TypeProfile describes one product type in the taxonomy.
type TypeProfile struct {
	Name       string   `yaml:"name"`
	Primary    []string `yaml:"primary"`
	Secondary  []string `yaml:"secondary"`
	Categories []string `yaml:"categories"`
	Attributes []string `yaml:"attributes"`
	Boost      float64  `yaml:"boost"`
	Avoid      []string `yaml:"avoid"`
}

// Tables is the raw, serializable form of a vocabulary.
type Tables struct {
	Synonyms       map[string]string   `yaml:"synonyms"`
	Plurals        map[string]string   `yaml:"plurals"`
	StopWords      []string            `yaml:"stop_words"`
	PrimaryTypes   []string            `yaml:"primary_types"`
	Colors         []string            `yaml:"colors"`
	Materials      []string            `yaml:"materials"`
	ModifierGroups map[string][]string `yaml:"modifier_groups"`
	SeatableTypes  []string            `yaml:"seatable_types"`
	Taxonomy       []TypeProfile       `yaml:"taxonomy"`
}

type Vocabulary struct {
	synonyms      map[string]string
	plurals       map[string]string
	stopWords     map[string]struct{}
	primaryTypes  map[string]struct{}
	colors        map[string]struct{}
	materials     map[string]struct{}
	modifierTerms map[string]string
	seatable      map[string]struct{}
	taxonomy      []TypeProfile
	profiles      map[string]int
}

// New validates and compiles tables into a Vocabulary. Every term is lowercased.
func New(t Tables) (*Vocabulary, error) {
	v := &Vocabulary{
		synonyms:      lowerMap(t.Synonyms),
		plurals:       lowerMap(t.Plurals),
		stopWords:     toSet(t.StopWords),
		primaryTypes:  toSet(t.PrimaryTypes),
		colors:        toSet(t.Colors),
		materials:     toSet(t.Materials),
		modifierTerms: make(map[string]string),
		seatable:      toSet(t.SeatableTypes),
		profiles:      make(map[string]int, len(t.Taxonomy)),
	}

	for group, terms := range t.ModifierGroups {
		g := normalizeTerm(group)
		if g == "" {
			return nil, fmt.Errorf("%w: empty modifier group name", ErrInvalid)
		}
		v.modifierTerms[g] = g
		for _, term := range terms {
			if n := normalizeTerm(term); n != "" {
				v.modifierTerms[n] = g
			}
		}
	}

	for _, p := range t.Taxonomy {
		name := normalizeTerm(p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: taxonomy entry without name", ErrInvalid)
		}
		if _, dup := v.profiles[name]; dup {
			return nil, fmt.Errorf("%w: duplicate taxonomy entry %q", ErrInvalid, name)
		}
		if len(p.Primary) == 0 {
			return nil, fmt.Errorf("%w: taxonomy entry %q has no primary terms", ErrInvalid, name)
		}
		boost := p.Boost
		if boost <= 0 {
			boost = 1.0
		}
		v.profiles[name] = len(v.taxonomy)
		v.taxonomy = append(v.taxonomy, TypeProfile{
			Name:       name,
			Primary:    lowerSlice(p.Primary),
			Secondary:  lowerSlice(p.Secondary),
			Categories: lowerSlice(p.Categories),
			Attributes: lowerSlice(p.Attributes),
			Boost:      boost,
			Avoid:      lowerSlice(p.Avoid),
		})
	}

	if len(v.primaryTypes) == 0 {
		return nil, fmt.Errorf("%w: no primary product types", ErrInvalid)
	}

	return v, nil
}

// Synonym returns the canonical form of token and whether a mapping exists.
func (v *Vocabulary) Synonym(token string) (string, bool) {
	s, ok := v.synonyms[token]
	return s, ok
}

// Singular folds a plural form to its singular, or returns token unchanged.
func (v *Vocabulary) Singular(token string) string {
	if s, ok := v.plurals[token]; ok {
		return s
	}
	return token
}

func (v *Vocabulary) IsStopWord(token string) bool {
	_, ok := v.stopWords[token]
	return ok
}

func (v *Vocabulary) IsPrimaryType(token string) bool {
	_, ok := v.primaryTypes[token]
	return ok
}

func (v *Vocabulary) IsColor(token string) bool {
	_, ok := v.colors[token]
	return ok
}

func (v *Vocabulary) IsMaterial(token string) bool {
	_, ok := v.materials[token]
	return ok
}

// ModifierGroup reports the material/color synonym group a token belongs to.
func (v *Vocabulary) ModifierGroup(token string) (string, bool) {
	g, ok := v.modifierTerms[token]
	return g, ok
}

func (v *Vocabulary) IsSeatable(productType string) bool {
	_, ok := v.seatable[productType]
	return ok
}

// Taxonomy returns the type profiles in declaration order. Callers must not
// modify the returned profiles.
func (v *Vocabulary) Taxonomy() []TypeProfile {
	return v.taxonomy
}

func (v *Vocabulary) Profile(name string) (TypeProfile, bool) {
	i, ok := v.profiles[name]
	if !ok {
		return TypeProfile{}, false
	}
	return v.taxonomy[i], true
}

// PluralForms lists every plural key, used by tests and the CLI.
func (v *Vocabulary) PluralForms() map[string]string {
	out := make(map[string]string, len(v.plurals))
	for k, s := range v.plurals {
		out[k] = s
	}
	return out
}

func normalizeTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		if n := normalizeTerm(it); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func lowerMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, val := range m {
		nk, nv := normalizeTerm(k), normalizeTerm(val)
		if nk == "" || nv == "" {
			continue
		}
		out[nk] = nv
	}
	return out
}

func lowerSlice(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if n := normalizeTerm(it); n != "" {
			out = append(out, n)
		}
	}
	return out
}
