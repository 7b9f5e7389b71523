package models

import (
	"encoding/json"
	"time"
)

// Stage identifies which rung of the fallback ladder produced a result set.
type Stage int

const (
	StageStrict Stage = iota
	StageRelaxed
	StagePopularity
	StageBrowse
	StageFlat
	StageNone
)

func (s Stage) String() string {
	switch s {
	case StageStrict:
		return "strict"
	case StageRelaxed:
		return "relaxed"
	case StagePopularity:
		return "popularity"
	case StageBrowse:
		return "browse"
	case StageFlat:
		return "flat"
	case StageNone:
		return "none"
	default:
		return "unknown"
	}
}

func (s Stage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	*s = ParseStage(name)
	return nil
}

func ParseStage(name string) Stage {
	for st := StageStrict; st <= StageNone; st++ {
		if st.String() == name {
			return st
		}
	}
	return StageNone
}

type SearchRequest struct {
	Query      string `json:"query"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	ForceFresh bool   `json:"forceFresh,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
}

// ClassifiedTokens partitions a token stream; every token lands in exactly one list.
type ClassifiedTokens struct {
	Primary   []string `json:"primary"`
	Modifiers []string `json:"modifiers"`
	StopWords []string `json:"stopWords"`
	Regular   []string `json:"regular"`
}

func NewClassifiedTokens() ClassifiedTokens {
	return ClassifiedTokens{
		Primary:   []string{},
		Modifiers: []string{},
		StopWords: []string{},
		Regular:   []string{},
	}
}

func (ct ClassifiedTokens) Len() int {
	return len(ct.Primary) + len(ct.Modifiers) + len(ct.StopWords) + len(ct.Regular)
}

// HasTextTerms reports whether the query carries terms the relaxed stage can match on.
func (ct ClassifiedTokens) HasTextTerms() bool {
	return len(ct.Primary) > 0 || len(ct.Regular) > 0
}

type Size struct {
	Value int    `json:"value"`
	Unit  string `json:"unit"`
}

type Numerics struct {
	Seater *int  `json:"seater,omitempty"`
	Size   *Size `json:"size,omitempty"`
}

func (n Numerics) IsEmpty() bool {
	return n.Seater == nil && n.Size == nil
}

type Intent struct {
	PrimaryType string  `json:"-"`
	Confidence  float64 `json:"confidence"`
}

func (i Intent) Resolved() bool {
	return i.PrimaryType != ""
}

func (i Intent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PrimaryType *string `json:"primaryType"`
		Confidence  float64 `json:"confidence"`
	}{
		PrimaryType: nullableString(i.PrimaryType),
		Confidence:  i.Confidence,
	})
}

func (i *Intent) UnmarshalJSON(data []byte) error {
	var raw struct {
		PrimaryType *string `json:"primaryType"`
		Confidence  float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.PrimaryType = ""
	if raw.PrimaryType != nil {
		i.PrimaryType = *raw.PrimaryType
	}
	i.Confidence = raw.Confidence
	return nil
}

// SearchResponse always carries every field so callers never branch on absence.
type SearchResponse struct {
	OK          bool             `json:"ok"`
	Query       string           `json:"query"`
	Normalized  []string         `json:"normalized"`
	Classified  ClassifiedTokens `json:"classified"`
	Intent      Intent           `json:"intent"`
	Numerics    Numerics         `json:"numerics"`
	PrimaryType *string          `json:"primaryType"`
	Products    []ScoredProduct  `json:"products"`
	Page        int              `json:"page"`
	PageSize    int              `json:"pageSize"`
	Total       int64            `json:"total"`
	HasMore     bool             `json:"hasMore"`
	TotalPages  int              `json:"totalPages"`
	Fallback    bool             `json:"fallback"`
	NoResults   bool             `json:"noResults"`
	Error       *string          `json:"error"`
	Stage       Stage            `json:"stage"`
	TookMs      int64            `json:"tookMs"`
	CacheHit    bool             `json:"cacheHit"`
}

// NewSearchResponse returns the empty, well-formed response shape.
func NewSearchResponse(query string) *SearchResponse {
	return &SearchResponse{
		OK:         true,
		Query:      query,
		Normalized: []string{},
		Classified: NewClassifiedTokens(),
		Products:   []ScoredProduct{},
		Stage:      StageNone,
	}
}

func (r *SearchResponse) SetError(msg string) {
	r.Error = &msg
}

type Suggestion struct {
	Text      string `json:"text"`
	ProductID string `json:"productId,omitempty"`
}

type TrendingQuery struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

const (
	ChangeCreate = "CREATE"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

type ChangeEvent struct {
	Type       string         `json:"type"`
	DocumentID string         `json:"document_id"`
	Collection string         `json:"collection"`
	Document   map[string]any `json:"document,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Version    int64          `json:"version"`
}

type IndexAction struct {
	Action    string         `json:"action"` // index, delete
	Index     string         `json:"index"`
	ID        string         `json:"id"`
	Body      map[string]any `json:"body,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Query kinds, by what the analysis found in the query.
const (
	QueryKindBrowse  = "browse"
	QueryKindIntent  = "intent"
	QueryKindNumeric = "numeric"
	QueryKindKeyword = "keyword"
)

// SlowSearch is one search that exceeded the slow query threshold.
type SlowSearch struct {
	QueryHash  string    `json:"query_hash"`
	Kind       string    `json:"kind"`
	Stage      string    `json:"stage"`
	Severity   string    `json:"severity"`
	DurationMs float64   `json:"duration_ms"`
	Total      int64     `json:"total"`
	Fallback   bool      `json:"fallback"`
	Timestamp  time.Time `json:"timestamp"`
	TraceID    string    `json:"trace_id"`
}

// SearchEvent is one row of the search log used for trending queries.
type SearchEvent struct {
	Query       string    `json:"query"`
	Normalized  string    `json:"normalized"`
	PrimaryType string    `json:"primary_type"`
	Confidence  float64   `json:"confidence"`
	Stage       string    `json:"stage"`
	Total       int64     `json:"total"`
	Fallback    bool      `json:"fallback"`
	NoResults   bool      `json:"no_results"`
	DurationMs  float64   `json:"duration_ms"`
	RequestID   string    `json:"request_id"`
	Timestamp   time.Time `json:"timestamp"`
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
