package extraction_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelliclone/memengine-go/pkg/extraction"
)

func TestExtractEntities(t *testing.T) {
	entities := extraction.ExtractEntities("Reach me at ola@example.com or +47 99 88 77 66.")

	types := map[extraction.EntityType]bool{}
	for _, e := range entities {
		types[e.Type] = true
	}
	assert.True(t, types[extraction.EntityEmail], "should detect the email address")
	assert.True(t, types[extraction.EntityPhone], "should detect the phone number")
}

func TestExtractEntitiesOverlapResolution(t *testing.T) {
	// The url also contains something phone-like in its path; overlapping
	// spans must collapse to the higher-confidence match.
	entities := extraction.ExtractEntities("See https://example.com/contact for details")

	for i, a := range entities {
		for _, b := range entities[i+1:] {
			overlap := a.Start < b.End && b.Start < a.End
			assert.False(t, overlap, "entities %q and %q overlap", a.Value, b.Value)
		}
	}
}

func TestExtractFactsOccupation(t *testing.T) {
	facts := extraction.ExtractFacts("I work as a backend engineer at Visma")

	var title, company *extraction.Fact
	for i := range facts {
		switch facts[i].Predicate {
		case "has_job_title":
			title = &facts[i]
		case "works_at":
			company = &facts[i]
		}
	}

	require.NotNil(t, title, "should extract a job title fact")
	require.NotNil(t, company, "should extract an employer fact")
	assert.Equal(t, "backend engineer", title.Object)
	assert.Equal(t, "Visma", company.Object)
	assert.GreaterOrEqual(t, title.Confidence, 0.75)
	assert.GreaterOrEqual(t, company.Confidence, 0.75)
	assert.True(t, title.AboutUser)
}

func TestExtractFactsThirdParty(t *testing.T) {
	facts := extraction.ExtractFacts("My sister works at Telenor")

	require.NotEmpty(t, facts)
	assert.Equal(t, "sister", facts[0].Subject)
	assert.Equal(t, "works_at", facts[0].Predicate)
	assert.Equal(t, "Telenor", facts[0].Object)
	assert.False(t, facts[0].AboutUser, "third-party facts are not about the user")

	// Filler words between the role and the verb are tolerated too.
	facts = extraction.ExtractFacts("My brother currently lives in Bergen")
	require.NotEmpty(t, facts)
	assert.Equal(t, "brother", facts[0].Subject)
	assert.Equal(t, "lives_in", facts[0].Predicate)
	assert.Equal(t, "Bergen", facts[0].Object)
}

func TestExtractFactsFromConversationDedup(t *testing.T) {
	turns := []extraction.Turn{
		{UserMessage: "I live in Oslo"},
		{UserMessage: "As I said, I live in Oslo"},
		{UserMessage: "I live in Oslo"},
	}

	first := extraction.ExtractFactsFromConversation(turns)
	second := extraction.ExtractFactsFromConversation(turns)

	require.Len(t, first, 1, "repeated facts deduplicate to one entry")
	assert.Equal(t, "lives_in", first[0].Predicate)
	assert.Equal(t, "Oslo", first[0].Object)

	// Boost is 0.05 per extra occurrence: 0.90 + 2*0.05 = 1.0.
	assert.InDelta(t, 1.0, first[0].Confidence, 1e-9)

	// Extraction is deterministic across runs.
	assert.Equal(t, first, second)
}

func TestRepetitionBoostIsCapped(t *testing.T) {
	turns := make([]extraction.Turn, 10)
	for i := range turns {
		turns[i] = extraction.Turn{UserMessage: "I work at Visma"}
	}

	facts := extraction.ExtractFactsFromConversation(turns)
	require.Len(t, facts, 1)
	assert.InDelta(t, 0.85+0.15, facts[0].Confidence, 1e-9,
		"boost caps at +0.15 regardless of repetition count")
}

func TestDetectPreferences(t *testing.T) {
	prefs := extraction.DetectPreferences("I prefer to be contacted by email. No meetings on Fridays!")

	var comm, sched *extraction.Preference
	for i := range prefs {
		switch prefs[i].Category {
		case extraction.PrefCommunication:
			comm = &prefs[i]
		case extraction.PrefScheduling:
			sched = &prefs[i]
		}
	}

	require.NotNil(t, comm)
	assert.Equal(t, extraction.PolarityPositive, comm.Polarity)
	assert.Equal(t, "email", comm.Topic)
	assert.NotEmpty(t, comm.Evidence)

	require.NotNil(t, sched)
	assert.Equal(t, extraction.PolarityNegative, sched.Polarity)
}

func TestDetectPreferencesStrength(t *testing.T) {
	strong := extraction.DetectPreferences("I really love bouldering")
	require.NotEmpty(t, strong)
	assert.Equal(t, extraction.StrengthStrong, strong[0].Strength)
}

func TestExtractInsightsAcknowledgementBoost(t *testing.T) {
	plain := extraction.ExtractInsights("I work as a backend engineer at Visma", "Noted.")
	acked := extraction.ExtractInsights("I work as a backend engineer at Visma",
		"Great, a backend engineer at Visma - I'll keep that in mind.")

	find := func(insights []extraction.Insight, field string) *extraction.Insight {
		for i := range insights {
			if insights[i].Field == field {
				return &insights[i]
			}
		}
		return nil
	}

	base := find(plain, "company")
	boosted := find(acked, "company")
	require.NotNil(t, base)
	require.NotNil(t, boosted)
	assert.InDelta(t, base.Confidence+0.1, boosted.Confidence, 1e-9,
		"acknowledged insights gain +0.1 confidence")
}

func TestPipelineExtract(t *testing.T) {
	p := extraction.NewPipeline(0.6)

	result, err := p.Extract("I work as a backend engineer at Visma and I want to automate our reporting", "Sounds good!")
	require.NoError(t, err)

	var hasWork, hasGoal bool
	for _, c := range result.Candidates {
		assert.GreaterOrEqual(t, c.Confidence, 0.6, "pipeline enforces the confidence floor")
		if c.Type == "fact" || c.Type == "relationship" {
			hasWork = true
		}
		if c.Type == "goal" {
			hasGoal = true
		}
	}
	assert.True(t, hasWork, "expected a fact candidate")
	assert.True(t, hasGoal, "expected a goal candidate")
	assert.NotEmpty(t, result.Insights)
}

func TestPipelineNoMatchIsNotAnError(t *testing.T) {
	p := extraction.NewPipeline(0.6)

	result, err := p.Extract("ok", "")
	require.NoError(t, err, "a turn with nothing to extract must not fail")
	assert.Empty(t, result.Candidates)
}
