// Package rank produces a total order over picker candidates by blending
// live fuzzy text relevance with historical usage weight.
package rank

import (
	"math"
	"sort"
	"time"
)

// Default blend weights. Fuzzy relevance dominates while typing; the
// history term breaks near-ties between comparable text matches.
const (
	DefaultFuzzyWeight   = 1.0
	DefaultHistoryWeight = 0.25

	DefaultNameWeight        = 1.0
	DefaultDescriptionWeight = 0.5
	DefaultCategoryWeight    = 0.25
)

// Weights configures the ranking blend. Field weights scale the fuzzy score
// of each candidate field; FuzzyWeight and HistoryWeight blend the combined
// fuzzy score with the usage-history term.
type Weights struct {
	Name        float64
	Description float64
	Category    float64
	Fuzzy       float64
	History     float64
}

// DefaultWeights returns the default ranking weights.
func DefaultWeights() Weights {
	return Weights{
		Name:        DefaultNameWeight,
		Description: DefaultDescriptionWeight,
		Category:    DefaultCategoryWeight,
		Fuzzy:       DefaultFuzzyWeight,
		History:     DefaultHistoryWeight,
	}
}

// Candidate is one ranked item. Key must be unique within a candidate set;
// it is the final deterministic tie-break.
type Candidate struct {
	Key         string
	Name        string
	Description string
	Category    string

	HitCount       int64
	LastUsedUnixMs int64
}

// Scored pairs a candidate with its computed score for debugging and tests.
type Scored struct {
	Candidate
	Score float64
}

// Engine ranks candidate sets. It is stateless apart from its weights and
// safe for concurrent use.
type Engine struct {
	weights Weights
}

// NewEngine creates a ranking engine. Zero-valued weights fall back to the
// defaults.
func NewEngine(w Weights) *Engine {
	d := DefaultWeights()
	if w.Name == 0 {
		w.Name = d.Name
	}
	if w.Description == 0 {
		w.Description = d.Description
	}
	if w.Category == 0 {
		w.Category = d.Category
	}
	if w.Fuzzy == 0 {
		w.Fuzzy = d.Fuzzy
	}
	if w.History == 0 {
		w.History = d.History
	}
	return &Engine{weights: w}
}

// Weights returns the configured weights.
func (e *Engine) Weights() Weights { return e.weights }

// Rank orders candidates for the given query at the given time. With a
// non-empty query, candidates whose fuzzy score is zero are dropped. With an
// empty query, fuzzy scoring is skipped entirely and the order is purely
// historical weight descending (the "recent/top items" view before the user
// types anything).
//
// The returned order is deterministic for identical inputs: ties break by
// higher hit count, then most recent use, then key order, never by arrival
// order.
func (e *Engine) Rank(query string, candidates []Candidate, now time.Time) []Scored {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		if query != "" && e.fieldScore(query, c) == 0 {
			continue
		}
		scored = append(scored, Scored{Candidate: c, Score: e.Score(query, c, now)})
	}

	sort.Slice(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.HitCount != b.HitCount {
			return a.HitCount > b.HitCount
		}
		if a.LastUsedUnixMs != b.LastUsedUnixMs {
			return a.LastUsedUnixMs > b.LastUsedUnixMs
		}
		return a.Key < b.Key
	})

	return scored
}

// Score computes the blended score for a single candidate.
func (e *Engine) Score(query string, c Candidate, now time.Time) float64 {
	history := math.Log1p(float64(c.HitCount)) * e.weights.History * recencyFactor(c.LastUsedUnixMs, now)
	if query == "" {
		return history
	}
	return e.fieldScore(query, c)*e.weights.Fuzzy + history
}

// fieldScore is the field-weighted fuzzy score: the best of the name,
// description, and category matches after applying their field weights.
func (e *Engine) fieldScore(query string, c Candidate) float64 {
	score := FuzzyScore(query, c.Name) * e.weights.Name
	if s := FuzzyScore(query, c.Description) * e.weights.Description; s > score {
		score = s
	}
	if s := FuzzyScore(query, c.Category) * e.weights.Category; s > score {
		score = s
	}
	return score
}

// recencyFactor decays the history term using 1/(1+log(hours_since_use+1)).
// Items never used (zero timestamp) keep a factor of 1 so pure hit counts
// still order them.
func recencyFactor(lastUsedUnixMs int64, now time.Time) float64 {
	if lastUsedUnixMs == 0 {
		return 1.0
	}
	hours := now.Sub(time.UnixMilli(lastUsedUnixMs)).Hours()
	if hours < 0 {
		hours = 0
	}
	return 1.0 / (1.0 + math.Log(hours+1))
}
