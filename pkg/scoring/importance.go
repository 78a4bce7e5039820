// Package scoring maps memory content and metadata to a normalized
// importance score with an auditable per-group breakdown.
//
// Scoring is pure and deterministic: identical factors and weights always
// produce identical scores, and no hidden state is consulted. That makes
// re-scoring during consolidation reproducible and testable.
package scoring

import (
	"math"
	"strings"

	"github.com/intelliclone/memengine-go/pkg/extraction"
)

// ContentFactors are signals derived from the memory text itself. All fields
// are positively oriented: a larger value never makes the memory less
// important.
type ContentFactors struct {
	// EntityCount is the number of distinct entities found in the content.
	EntityCount int `json:"entity_count"`

	// HasTemporal is true when the content carries a date or time marker.
	HasTemporal bool `json:"has_temporal"`

	// HasEmotional is true when emotional markers are present.
	HasEmotional bool `json:"has_emotional"`

	// HasNumerical is true when the content contains numbers.
	HasNumerical bool `json:"has_numerical"`

	// LengthScore grades content length into [0,1].
	LengthScore float64 `json:"length_score"`

	// Specificity is the inverse of vagueness-word density (0.0-1.0).
	Specificity float64 `json:"specificity"`
}

// SourceFactors describe how the memory was acquired.
type SourceFactors struct {
	// Method is the acquisition method: explicit, inferred, imported,
	// or system.
	Method string `json:"method"`

	// Explicitness grades how directly the user stated the information
	// (1.0 for an explicit statement, lower for inference).
	Explicitness float64 `json:"explicitness"`

	// UserEmphasis is true when the user flagged the content as important
	// ("remember this", "important", "don't forget").
	UserEmphasis bool `json:"user_emphasis"`

	// Repetition counts how many times the information was repeated.
	Repetition int `json:"repetition"`
}

// ContextFactors situate the memory among the user's other memories.
type ContextFactors struct {
	// TypeWeight is the baseline weight of the memory's semantic type.
	TypeWeight float64 `json:"type_weight"`

	// Recency is a 0-1 freshness value (1.0 = created now, decaying with
	// age). Stored positively oriented so every factor is monotonic.
	Recency float64 `json:"recency"`

	// GoalRelevance grades how related the memory is to known user goals.
	GoalRelevance float64 `json:"goal_relevance"`

	// TopicClustering grades how many sibling memories share the topic.
	TopicClustering float64 `json:"topic_clustering"`
}

// UsageFactors capture demonstrated utility after storage.
type UsageFactors struct {
	// RetrievalFrequency grades how often the memory is retrieved (0-1).
	RetrievalFrequency float64 `json:"retrieval_frequency"`

	// UsageRate grades how often retrieval led to actual use (0-1).
	UsageRate float64 `json:"usage_rate"`

	// Feedback is explicit user feedback on the memory's usefulness (0-1).
	Feedback float64 `json:"feedback"`
}

// ImportanceFactors groups every scoring input.
type ImportanceFactors struct {
	Content ContentFactors `json:"content"`
	Source  SourceFactors  `json:"source"`
	Context ContextFactors `json:"context"`
	Usage   UsageFactors   `json:"usage"`
}

// Breakdown holds the raw weighted contribution of each factor group,
// before normalization. Stored alongside the score for explainability and
// exact re-scoring when usage changes.
type Breakdown struct {
	Content float64 `json:"content"`
	Source  float64 `json:"source"`
	Context float64 `json:"context"`
	Usage   float64 `json:"usage"`
}

// ImportanceScore is the scoring output: the normalized score plus its
// per-group breakdown.
type ImportanceScore struct {
	// Score is the normalized importance in [0,1].
	Score float64 `json:"score"`

	// Breakdown is the raw weighted contribution per factor group.
	Breakdown Breakdown `json:"breakdown"`
}

// Weights maps each factor to its numeric contribution. Weights are
// versioned configuration, not per-memory state; changing weights and
// re-running Calculate re-scores a memory under the new regime.
//
// All weights must be non-negative so that increasing any single factor
// never decreases the resulting score.
type Weights struct {
	// Version identifies the weight configuration for audit trails.
	Version string `json:"version"`

	// Content group.
	Entity      float64 `json:"entity"`
	Temporal    float64 `json:"temporal"`
	Emotional   float64 `json:"emotional"`
	Numerical   float64 `json:"numerical"`
	Length      float64 `json:"length"`
	Specificity float64 `json:"specificity"`

	// Source group.
	Explicitness float64 `json:"explicitness"`
	Emphasis     float64 `json:"emphasis"`
	Repetition   float64 `json:"repetition"`

	// Context group.
	TypeBaseline    float64 `json:"type_baseline"`
	Recency         float64 `json:"recency"`
	GoalRelevance   float64 `json:"goal_relevance"`
	TopicClustering float64 `json:"topic_clustering"`

	// Usage group.
	RetrievalFrequency float64 `json:"retrieval_frequency"`
	UsageRate          float64 `json:"usage_rate"`
	Feedback           float64 `json:"feedback"`

	// SaturationK controls the saturating normalization
	// score = 1 - exp(-SaturationK * rawSum).
	SaturationK float64 `json:"saturation_k"`
}

// DefaultWeights returns the default weight configuration.
func DefaultWeights() *Weights {
	return &Weights{
		Version: "v1",

		Entity:      0.15,
		Temporal:    0.10,
		Emotional:   0.10,
		Numerical:   0.05,
		Length:      0.05,
		Specificity: 0.15,

		Explicitness: 0.25,
		Emphasis:     0.30,
		Repetition:   0.10,

		TypeBaseline:    0.25,
		Recency:         0.10,
		GoalRelevance:   0.15,
		TopicClustering: 0.05,

		RetrievalFrequency: 0.20,
		UsageRate:          0.15,
		Feedback:           0.25,

		SaturationK: 1.6,
	}
}

// typeBaselines are the per-type baseline weights used by ExtractFactors.
var typeBaselines = map[string]float64{
	"fact":         0.6,
	"preference":   0.7,
	"event":        0.5,
	"relationship": 0.8,
	"skill":        0.6,
	"goal":         0.9,
	"context":      0.4,
	"feedback":     0.7,
}

// methodExplicitness maps acquisition methods to their explicitness grade.
var methodExplicitness = map[string]float64{
	"explicit": 1.0,
	"inferred": 0.6,
	"imported": 0.5,
	"system":   0.3,
}

var (
	emphasisPhrases = []string{
		"remember this", "remember that", "don't forget", "important",
		"make sure", "note that", "keep in mind", "critical",
	}
	emotionalWords = []string{
		"love", "hate", "excited", "worried", "happy", "sad", "angry",
		"frustrated", "thrilled", "anxious", "proud", "scared",
	}
	temporalWords = []string{
		"today", "tomorrow", "yesterday", "monday", "tuesday", "wednesday",
		"thursday", "friday", "saturday", "sunday", "next week", "last week",
		"january", "february", "march", "april", "may", "june", "july",
		"august", "september", "october", "november", "december",
	}
	vagueWords = []string{
		"something", "somehow", "maybe", "perhaps", "stuff", "things",
		"whatever", "somewhere", "sometime", "kind of", "sort of",
	}
	goalWords = []string{"goal", "plan", "aim", "deadline", "target", "objective", "milestone"}
)

// Scorer computes importance scores under a fixed weight configuration.
type Scorer struct {
	weights *Weights
}

// NewScorer creates a scorer. A nil weights argument uses DefaultWeights.
func NewScorer(weights *Weights) *Scorer {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Scorer{weights: weights}
}

// Weights returns the scorer's active weight configuration.
func (s *Scorer) Weights() *Weights {
	return s.weights
}

// ExtractFactors derives content, source, and context factors from a
// memory's own content and metadata using lightweight detectors. Usage
// factors start at zero; they accrue after storage.
//
// Parameters:
//   - content: the memory text
//   - memoryType: semantic type name (fact, preference, goal, ...)
//   - source: acquisition method (explicit, inferred, imported, system)
//   - ageDays: days since creation (0 for a new memory)
func (s *Scorer) ExtractFactors(content, memoryType, source string, ageDays float64) ImportanceFactors {
	lower := strings.ToLower(content)

	f := ImportanceFactors{}

	f.Content.EntityCount = len(extraction.ExtractEntities(content))
	f.Content.HasTemporal = containsAny(lower, temporalWords)
	f.Content.HasEmotional = containsAny(lower, emotionalWords)
	f.Content.HasNumerical = strings.IndexFunc(content, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
	f.Content.LengthScore = lengthScore(content)
	f.Content.Specificity = specificity(lower)

	f.Source.Method = source
	if e, ok := methodExplicitness[source]; ok {
		f.Source.Explicitness = e
	} else {
		f.Source.Explicitness = 0.5
	}
	f.Source.UserEmphasis = containsAny(lower, emphasisPhrases)
	f.Source.Repetition = 1

	if baseline, ok := typeBaselines[memoryType]; ok {
		f.Context.TypeWeight = baseline
	} else {
		f.Context.TypeWeight = 0.5
	}
	if ageDays < 0 {
		ageDays = 0
	}
	f.Context.Recency = math.Exp(-ageDays / 30.0)
	if containsAny(lower, goalWords) {
		f.Context.GoalRelevance = 0.8
	}

	return f
}

// Calculate maps factors to a normalized score using the scorer's weights.
//
// Each group contributes a weighted sum of its factors; the total is mapped
// to [0,1] by the saturating function 1 - exp(-k * total), never a linearly
// unbounded sum. The per-group raw contributions are returned in the
// breakdown so consolidation can re-score without re-deriving content
// factors.
func (s *Scorer) Calculate(f ImportanceFactors) ImportanceScore {
	return s.CalculateWith(f, s.weights)
}

// CalculateWith is Calculate under an explicit weight configuration.
func (s *Scorer) CalculateWith(f ImportanceFactors, w *Weights) ImportanceScore {
	if w == nil {
		w = s.weights
	}

	b := Breakdown{
		Content: contentContribution(f.Content, w),
		Source:  sourceContribution(f.Source, w),
		Context: contextContribution(f.Context, w),
		Usage:   usageContribution(f.Usage, w),
	}

	return ImportanceScore{Score: saturate(b.Content+b.Source+b.Context+b.Usage, w.SaturationK), Breakdown: b}
}

// RecalculateWithUsage blends a stored score with a freshly computed usage
// contribution. The content, source, and context contributions are taken
// from the stored breakdown unchanged, so importance can grow with
// demonstrated utility independent of the original content signals.
func (s *Scorer) RecalculateWithUsage(current ImportanceScore, usage UsageFactors) ImportanceScore {
	return s.RecalculateWithUsageAndWeights(current, usage, s.weights)
}

// RecalculateWithUsageAndWeights is RecalculateWithUsage under an explicit
// weight configuration.
func (s *Scorer) RecalculateWithUsageAndWeights(current ImportanceScore, usage UsageFactors, w *Weights) ImportanceScore {
	if w == nil {
		w = s.weights
	}

	b := current.Breakdown
	b.Usage = usageContribution(usage, w)

	return ImportanceScore{Score: saturate(b.Content+b.Source+b.Context+b.Usage, w.SaturationK), Breakdown: b}
}

func contentContribution(c ContentFactors, w *Weights) float64 {
	sum := 0.0
	sum += w.Entity * capUnit(float64(c.EntityCount)/3.0)
	sum += w.Temporal * boolUnit(c.HasTemporal)
	sum += w.Emotional * boolUnit(c.HasEmotional)
	sum += w.Numerical * boolUnit(c.HasNumerical)
	sum += w.Length * capUnit(c.LengthScore)
	sum += w.Specificity * capUnit(c.Specificity)
	return sum
}

func sourceContribution(src SourceFactors, w *Weights) float64 {
	sum := 0.0
	sum += w.Explicitness * capUnit(src.Explicitness)
	sum += w.Emphasis * boolUnit(src.UserEmphasis)
	if src.Repetition > 1 {
		sum += w.Repetition * capUnit(float64(src.Repetition-1)/3.0)
	}
	return sum
}

func contextContribution(c ContextFactors, w *Weights) float64 {
	sum := 0.0
	sum += w.TypeBaseline * capUnit(c.TypeWeight)
	sum += w.Recency * capUnit(c.Recency)
	sum += w.GoalRelevance * capUnit(c.GoalRelevance)
	sum += w.TopicClustering * capUnit(c.TopicClustering)
	return sum
}

func usageContribution(u UsageFactors, w *Weights) float64 {
	sum := 0.0
	sum += w.RetrievalFrequency * capUnit(u.RetrievalFrequency)
	sum += w.UsageRate * capUnit(u.UsageRate)
	sum += w.Feedback * capUnit(u.Feedback)
	return sum
}

// saturate maps a non-negative raw sum to [0,1) via 1 - e^(-k*x). The
// function is strictly increasing, so adding contribution never lowers the
// score, and it can never exceed 1 regardless of weight configuration.
func saturate(raw, k float64) float64 {
	if raw <= 0 {
		return 0
	}
	if k <= 0 {
		k = DefaultWeights().SaturationK
	}
	return 1.0 - math.Exp(-k*raw)
}

func lengthScore(content string) float64 {
	n := len(content)
	switch {
	case n >= 200:
		return 1.0
	case n >= 100:
		return 0.7
	case n >= 40:
		return 0.4
	default:
		return 0.2
	}
}

// specificity is the inverse of vagueness-word density: text dominated by
// vague filler words scores low, concrete text scores high.
func specificity(lower string) float64 {
	words := strings.Fields(lower)
	if len(words) == 0 {
		return 0
	}
	vague := 0
	for _, w := range vagueWords {
		vague += strings.Count(lower, w)
	}
	density := float64(vague) / float64(len(words))
	s := 1.0 - 4.0*density
	if s < 0 {
		return 0
	}
	return s
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func boolUnit(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func capUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
