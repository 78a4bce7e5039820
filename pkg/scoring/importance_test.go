package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelliclone/memengine-go/pkg/scoring"
)

func TestCalculateScoreBounds(t *testing.T) {
	scorer := scoring.NewScorer(nil)

	// Maxed-out factors under aggressive weights must still stay in [0,1].
	heavy := scoring.DefaultWeights()
	heavy.Entity = 5.0
	heavy.Emphasis = 5.0
	heavy.TypeBaseline = 5.0
	heavy.SaturationK = 10.0

	factors := scoring.ImportanceFactors{
		Content: scoring.ContentFactors{
			EntityCount: 10, HasTemporal: true, HasEmotional: true,
			HasNumerical: true, LengthScore: 1.0, Specificity: 1.0,
		},
		Source: scoring.SourceFactors{
			Method: "explicit", Explicitness: 1.0, UserEmphasis: true, Repetition: 5,
		},
		Context: scoring.ContextFactors{
			TypeWeight: 1.0, Recency: 1.0, GoalRelevance: 1.0, TopicClustering: 1.0,
		},
		Usage: scoring.UsageFactors{
			RetrievalFrequency: 1.0, UsageRate: 1.0, Feedback: 1.0,
		},
	}

	for _, w := range []*scoring.Weights{nil, heavy, scoring.DefaultWeights()} {
		score := scorer.CalculateWith(factors, w)
		assert.GreaterOrEqual(t, score.Score, 0.0)
		assert.LessOrEqual(t, score.Score, 1.0)
	}

	empty := scorer.Calculate(scoring.ImportanceFactors{})
	assert.Equal(t, 0.0, empty.Score, "no signal means zero importance")
}

func TestCalculateMonotonicity(t *testing.T) {
	scorer := scoring.NewScorer(nil)

	base := scoring.ImportanceFactors{
		Content: scoring.ContentFactors{EntityCount: 1, LengthScore: 0.4, Specificity: 0.5},
		Source:  scoring.SourceFactors{Explicitness: 0.6, Repetition: 1},
		Context: scoring.ContextFactors{TypeWeight: 0.6, Recency: 0.5},
	}
	baseScore := scorer.Calculate(base).Score

	// Increasing any single factor while holding the rest fixed never
	// decreases the score.
	variants := []scoring.ImportanceFactors{}

	v := base
	v.Content.EntityCount = 3
	variants = append(variants, v)

	v = base
	v.Content.HasTemporal = true
	variants = append(variants, v)

	v = base
	v.Content.Specificity = 1.0
	variants = append(variants, v)

	v = base
	v.Source.UserEmphasis = true
	variants = append(variants, v)

	v = base
	v.Source.Repetition = 4
	variants = append(variants, v)

	v = base
	v.Context.Recency = 1.0
	variants = append(variants, v)

	v = base
	v.Usage.Feedback = 1.0
	variants = append(variants, v)

	for i, variant := range variants {
		got := scorer.Calculate(variant).Score
		assert.GreaterOrEqual(t, got, baseScore, "variant %d decreased the score", i)
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	scorer := scoring.NewScorer(nil)
	factors := scorer.ExtractFactors("Meeting with Dr. Hansen on 2026-03-01 about the budget", "event", "explicit", 2)

	a := scorer.Calculate(factors)
	b := scorer.Calculate(factors)
	assert.Equal(t, a, b, "identical inputs must score identically")
}

func TestExtractFactors(t *testing.T) {
	scorer := scoring.NewScorer(nil)

	f := scorer.ExtractFactors("Remember this: deadline is Friday, budget 50000 NOK", "goal", "explicit", 0)

	assert.True(t, f.Source.UserEmphasis, "emphasis phrase should be detected")
	assert.True(t, f.Content.HasTemporal, "weekday should count as temporal")
	assert.True(t, f.Content.HasNumerical)
	assert.Equal(t, 1.0, f.Source.Explicitness)
	assert.Equal(t, 0.9, f.Context.TypeWeight, "goal carries the highest type baseline")
	assert.Equal(t, 1.0, f.Context.Recency, "a new memory has full recency")
	assert.Greater(t, f.Context.GoalRelevance, 0.0)
}

func TestExtractFactorsVagueContent(t *testing.T) {
	scorer := scoring.NewScorer(nil)

	vague := scorer.ExtractFactors("maybe something about stuff and things somehow", "context", "inferred", 0)
	concrete := scorer.ExtractFactors("Lunch with Maria at Mathallen at 12:30 on Tuesday", "event", "explicit", 0)

	assert.Less(t, vague.Content.Specificity, concrete.Content.Specificity,
		"vague filler text must score lower specificity")
}

func TestRecalculateWithUsage(t *testing.T) {
	scorer := scoring.NewScorer(nil)

	factors := scorer.ExtractFactors("User works at Visma as a backend engineer", "fact", "explicit", 0)
	initial := scorer.Calculate(factors)
	require.Greater(t, initial.Score, 0.0, "a concrete explicit fact must score above zero")

	grown := scorer.RecalculateWithUsage(initial, scoring.UsageFactors{
		RetrievalFrequency: 0.8,
		UsageRate:          0.6,
		Feedback:           1.0,
	})

	assert.Greater(t, grown.Score, initial.Score, "demonstrated utility should raise importance")
	assert.LessOrEqual(t, grown.Score, 1.0)

	// The non-usage breakdown entries must survive the re-score unchanged.
	assert.Equal(t, initial.Breakdown.Content, grown.Breakdown.Content)
	assert.Equal(t, initial.Breakdown.Source, grown.Breakdown.Source)
	assert.Equal(t, initial.Breakdown.Context, grown.Breakdown.Context)

	// Dropping usage back to zero restores the original score exactly.
	restored := scorer.RecalculateWithUsage(grown, scoring.UsageFactors{})
	assert.InDelta(t, initial.Score, restored.Score, 1e-12)
}
