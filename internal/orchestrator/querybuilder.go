package orchestrator

import (
	"math"
	"strings"

	"github.com/shubhsaxena/furniture-search/internal/catalog"
	"github.com/shubhsaxena/furniture-search/internal/config"
	"github.com/shubhsaxena/furniture-search/internal/models"
	"github.com/shubhsaxena/furniture-search/internal/vocabulary"
)

const (
	CategoryExact   = "exact"
	CategoryHigh    = "high"
	CategoryMedium  = "medium"
	CategoryLow     = "low"
	CategoryGeneral = "general"
)

const (
	baseScoreFloor    = 0.1
	neutralScore      = 1.0
	setBonus          = 1.5
	seaterExactBonus  = 10.0
	seaterNearBonus   = 3.0
	inStockFactor     = 1.2
	outOfStockFactor  = 0.3
	featuredFactor    = 1.15
	ratingFactor      = 0.1
	avoidPenalty      = -2.0
	neutralIntent     = 0.5
	minIntentConf     = 0.5
	strongIntentConf  = 0.8
	strongMinScore    = 3.0
	weakMinScore      = 1.5
	keywordOverride   = 8.0
	relaxedSeaterBump = 5.0
)

var categoryBonus = map[string]float64{
	CategoryExact:  50,
	CategoryHigh:   30,
	CategoryMedium: 15,
	CategoryLow:    5,
}

// QueryBuilder compiles an analysis into the plans run by each stage of the
// fallback ladder.
type QueryBuilder struct {
	vocab   *vocabulary.Vocabulary
	weights config.WeightsConfig
}

func NewQueryBuilder(vocab *vocabulary.Vocabulary, weights config.WeightsConfig) *QueryBuilder {
	return &QueryBuilder{vocab: vocab, weights: weights}
}

// Strict returns the fully scored and gated plan, or the popularity-proxy
// browse plan when the query carries no tokens and no numerics.
func (qb *QueryBuilder) Strict(a *Analysis) catalog.Plan {
	if a.IsBrowse() {
		return browsePlan{}
	}

	profile, ok := qb.vocab.Profile(a.Intent.PrimaryType)
	if !ok && a.Intent.Resolved() {
		profile = vocabulary.TypeProfile{Name: a.Intent.PrimaryType, Primary: []string{a.Intent.PrimaryType}}
	}

	minScore := weakMinScore
	if a.Intent.Confidence > strongIntentConf {
		minScore = strongMinScore
	}

	return &strictPlan{
		classified: a.Classified,
		seater:     a.Numerics.Seater,
		intent:     a.Intent,
		profile:    profile,
		weights:    qb.weights,
		minScore:   minScore,
		hasSet:     contains(a.Classified.StopWords, "set"),
	}
}

// Relaxed returns the substring-match plan used when the strict plan finds
// nothing. Its terms are the primary tokens, or the first two regular tokens.
func (qb *QueryBuilder) Relaxed(a *Analysis) catalog.Plan {
	terms := a.Classified.Primary
	if len(terms) == 0 {
		terms = a.Classified.Regular
		if len(terms) > 2 {
			terms = terms[:2]
		}
	}
	return &relaxedPlan{
		terms:  append([]string(nil), terms...),
		seater: a.Numerics.Seater,
	}
}

// Popularity returns featured or in-stock products ranked by popularity.
func (qb *QueryBuilder) Popularity(limit int) catalog.Plan {
	return popularityPlan{limit: limit}
}

// Flat returns an unscored listing of published products, newest first.
func (qb *QueryBuilder) Flat(limit int) catalog.Plan {
	return flatPlan{limit: limit}
}

type strictPlan struct {
	classified models.ClassifiedTokens
	seater     *int
	intent     models.Intent
	profile    vocabulary.TypeProfile
	weights    config.WeightsConfig
	minScore   float64
	hasSet     bool
}

func (sp *strictPlan) Stage() models.Stage { return models.StageStrict }

func (sp *strictPlan) Cap() int { return 0 }

func (sp *strictPlan) Filter() catalog.CandidateFilter {
	var terms []string
	terms = appendUnique(terms, sp.classified.Primary...)
	terms = appendUnique(terms, sp.classified.Regular...)
	terms = appendUnique(terms, sp.classified.Modifiers...)
	terms = appendUnique(terms, sp.profile.Primary...)
	return catalog.CandidateFilter{Terms: terms, Seater: sp.seater}
}

func (sp *strictPlan) Evaluate(p *models.Product) (models.ScoredProduct, bool) {
	name := strings.ToLower(p.Name)

	score := guardFloat(neutralScore, func() float64 { return sp.searchScore(p, name) })
	category := guardString(CategoryGeneral, func() string { return sp.relevanceCategory(p, name) })
	intentMatch := guardFloat(0, func() float64 { return sp.intentMatch(name) })

	out := models.ScoredProduct{
		Product:           *p,
		SearchScore:       &score,
		RelevanceCategory: category,
		IntentMatch:       intentMatch,
		SortPriority:      intentMatch*100 + categoryBonus[category] + score*2,
	}

	strongKeyword := score > keywordOverride && (category == CategoryExact || category == CategoryHigh)
	pass := score > sp.minScore && (intentMatch >= 1 || strongKeyword)
	return out, pass
}

func (sp *strictPlan) Less(a, b *models.ScoredProduct) bool {
	return rankedLess(a, b)
}

func (sp *strictPlan) searchScore(p *models.Product, name string) float64 {
	w := sp.weights
	base := 0.0

	for _, tok := range sp.classified.Primary {
		if strings.Contains(name, tok) || hasTag(p.Tags, tok) {
			base += w.Name * 5
		}
	}

	brand := strings.ToLower(p.Brand)
	for _, tok := range sp.classified.Regular {
		if strings.Contains(name, tok) {
			base += w.Name * 0.7 * 2
		}
		if strings.Contains(brand, tok) {
			base += w.Brand * 2
		}
	}

	material := strings.ToLower(p.Material)
	attrMaterial := strings.ToLower(p.Attributes.Material)
	attrColor := strings.ToLower(p.Attributes.Color)
	for _, tok := range sp.classified.Modifiers {
		if strings.Contains(material, tok) || strings.Contains(attrMaterial, tok) {
			base += w.Material * 3
		}
		if anyContains(p.ColorOptions, tok) || strings.Contains(attrColor, tok) {
			base += w.Color * 3
		}
	}

	if sp.hasSet && strings.Contains(name, "set") && sp.nameHasTextToken(name) {
		base += setBonus
	}

	if base == 0 {
		base = baseScoreFloor
	}

	if sp.seater != nil && p.Attributes.Seater > 0 {
		diff := p.Attributes.Seater - *sp.seater
		switch {
		case diff == 0:
			base += seaterExactBonus
		case diff == 1 || diff == -1:
			base += seaterNearBonus
		}
	}

	stock := outOfStockFactor
	if p.InStock() {
		stock = inStockFactor
	}
	featured := 1.0
	if p.Featured {
		featured = featuredFactor
	}

	return base * stock * featured * (1 + p.Reviews.Average*ratingFactor)
}

func (sp *strictPlan) nameHasTextToken(name string) bool {
	for _, tok := range sp.classified.Primary {
		if strings.Contains(name, tok) {
			return true
		}
	}
	for _, tok := range sp.classified.Regular {
		if strings.Contains(name, tok) {
			return true
		}
	}
	return false
}

func (sp *strictPlan) relevanceCategory(p *models.Product, name string) string {
	for _, tok := range sp.classified.Primary {
		if strings.Contains(name, tok) {
			return CategoryExact
		}
	}
	if sp.intent.Confidence > strongIntentConf && containsAny(name, sp.profile.Primary) {
		return CategoryHigh
	}
	for _, tok := range sp.classified.Regular {
		if strings.Contains(name, tok) || hasTag(p.Tags, tok) {
			return CategoryMedium
		}
	}
	return CategoryLow
}

func (sp *strictPlan) intentMatch(name string) float64 {
	if !sp.intent.Resolved() || sp.intent.Confidence < minIntentConf {
		return 0
	}
	if containsAny(name, sp.profile.Primary) {
		return sp.intent.Confidence * 3
	}
	if containsAny(name, sp.profile.Avoid) {
		return avoidPenalty
	}
	return neutralIntent
}

// browsePlan ranks every published product by a popularity proxy.
type browsePlan struct{}

func (browsePlan) Stage() models.Stage { return models.StageBrowse }

func (browsePlan) Cap() int { return 0 }

func (browsePlan) Filter() catalog.CandidateFilter {
	return catalog.CandidateFilter{Order: catalog.OrderViews}
}

func (browsePlan) Evaluate(p *models.Product) (models.ScoredProduct, bool) {
	score := guardFloat(neutralScore, func() float64 {
		s := math.Log(float64(p.ViewCount)+1)*0.3 + p.Reviews.Average*0.4
		if p.Featured {
			s += 2.0
		}
		return s
	})
	return models.ScoredProduct{
		Product:           *p,
		SearchScore:       &score,
		RelevanceCategory: CategoryGeneral,
		SortPriority:      score * 2,
	}, true
}

func (browsePlan) Less(a, b *models.ScoredProduct) bool {
	return rankedLess(a, b)
}

type relaxedPlan struct {
	terms  []string
	seater *int
}

func (rp *relaxedPlan) Stage() models.Stage { return models.StageRelaxed }

func (rp *relaxedPlan) Cap() int { return 0 }

func (rp *relaxedPlan) Filter() catalog.CandidateFilter {
	return catalog.CandidateFilter{Terms: rp.terms, Seater: rp.seater}
}

func (rp *relaxedPlan) Evaluate(p *models.Product) (models.ScoredProduct, bool) {
	if !rp.matches(p) {
		return models.ScoredProduct{}, false
	}

	score := guardFloat(neutralScore, func() float64 {
		s := math.Log(float64(p.TotalSold)+1) * 0.3
		if p.Featured {
			s += 2.0
		}
		if p.InStock() {
			s += 1.0
		}
		if rp.seater != nil && p.Attributes.Seater == *rp.seater {
			s += relaxedSeaterBump
		}
		return s
	})

	return models.ScoredProduct{
		Product:           *p,
		SearchScore:       &score,
		RelevanceCategory: CategoryLow,
		SortPriority:      score,
	}, true
}

func (rp *relaxedPlan) matches(p *models.Product) bool {
	name := strings.ToLower(p.Name)
	brand := strings.ToLower(p.Brand)
	for _, term := range rp.terms {
		if strings.Contains(name, term) || hasTag(p.Tags, term) || strings.Contains(brand, term) {
			return true
		}
	}
	return false
}

func (rp *relaxedPlan) Less(a, b *models.ScoredProduct) bool {
	return rankedLess(a, b)
}

type popularityPlan struct {
	limit int
}

func (popularityPlan) Stage() models.Stage { return models.StagePopularity }

func (pp popularityPlan) Cap() int { return pp.limit }

func (popularityPlan) Filter() catalog.CandidateFilter {
	return catalog.CandidateFilter{FeaturedOrInStock: true, Order: catalog.OrderPopular}
}

func (popularityPlan) Evaluate(p *models.Product) (models.ScoredProduct, bool) {
	return models.ScoredProduct{Product: *p}, p.Featured || p.InStock()
}

func (popularityPlan) Less(a, b *models.ScoredProduct) bool {
	if a.Featured != b.Featured {
		return a.Featured
	}
	if a.Reviews.Average != b.Reviews.Average {
		return a.Reviews.Average > b.Reviews.Average
	}
	return newestFirst(a, b)
}

type flatPlan struct {
	limit int
}

func (flatPlan) Stage() models.Stage { return models.StageFlat }

func (fp flatPlan) Cap() int { return fp.limit }

func (flatPlan) Filter() catalog.CandidateFilter {
	return catalog.CandidateFilter{Order: catalog.OrderNewest}
}

func (flatPlan) Evaluate(p *models.Product) (models.ScoredProduct, bool) {
	return models.ScoredProduct{Product: *p}, true
}

func (flatPlan) Less(a, b *models.ScoredProduct) bool {
	return newestFirst(a, b)
}

// rankedLess orders by sort priority, score, featured, rating, recency and id.
func rankedLess(a, b *models.ScoredProduct) bool {
	if a.SortPriority != b.SortPriority {
		return a.SortPriority > b.SortPriority
	}
	if as, bs := a.Score(), b.Score(); as != bs {
		return as > bs
	}
	if a.Featured != b.Featured {
		return a.Featured
	}
	if a.Reviews.Average != b.Reviews.Average {
		return a.Reviews.Average > b.Reviews.Average
	}
	return newestFirst(a, b)
}

func newestFirst(a, b *models.ScoredProduct) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}

func guardFloat(fallback float64, fn func() float64) (v float64) {
	defer func() {
		if r := recover(); r != nil {
			v = fallback
		}
	}()
	v = fn()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func guardString(fallback string, fn func() string) (v string) {
	defer func() {
		if r := recover(); r != nil {
			v = fallback
		}
	}()
	return fn()
}

func hasTag(tags []string, tok string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tok) {
			return true
		}
	}
	return false
}

func anyContains(values []string, tok string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), tok) {
			return true
		}
	}
	return false
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if t != "" && strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func contains(items []string, s string) bool {
	for _, it := range items {
		if it == s {
			return true
		}
	}
	return false
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		if !contains(dst, it) {
			dst = append(dst, it)
		}
	}
	return dst
}
