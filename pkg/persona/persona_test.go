package persona_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelliclone/memengine-go/pkg/extraction"
	"github.com/intelliclone/memengine-go/pkg/persona"
)

func newService() *persona.Service {
	return persona.NewService(persona.NewMemoryStore(), nil)
}

func TestGetOrCreatePersona(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	p, err := svc.GetOrCreatePersona(ctx, "user_001", "tenant_001", "")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "user_001", p.UserID)
	assert.Equal(t, 0.0, p.Confidence, "a fresh persona starts with no confidence")

	again, err := svc.GetOrCreatePersona(ctx, "user_001", "tenant_001", "")
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID, "the same scope returns the same aggregate")
}

func TestUpdateFromInsightsProfessional(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	insights := extraction.ExtractInsights("I work as a backend engineer at Visma", "Got it!")
	p, err := svc.UpdateFromInsights(ctx, "user_001", "tenant_001", "", insights)
	require.NoError(t, err)

	assert.Equal(t, "backend engineer", p.Professional.Title)
	assert.Equal(t, "Visma", p.Professional.Company)
	assert.Equal(t, 1, p.ConversationCount)
	assert.Greater(t, p.Confidence, 0.0)
}

func TestUpdateFromInsightsIsolatesBadInsights(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	insights := []extraction.Insight{
		{Category: "nonsense", Field: "x", Value: "y", Confidence: 0.9},
		{Category: extraction.InsightProfessional, Field: "title", Value: "designer", Confidence: 0.8},
		{Category: extraction.InsightGoal, Field: "goal", Value: "", Confidence: 0.8},
	}

	p, err := svc.UpdateFromInsights(ctx, "user_001", "tenant_001", "", insights)
	require.NoError(t, err, "bad insights are skipped, never fatal to the batch")
	assert.Equal(t, "designer", p.Professional.Title)
	assert.Empty(t, p.Professional.Goals)
}

func TestUpdateFromInsightsDeduplicates(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	insights := []extraction.Insight{
		{Category: extraction.InsightRelationship, Field: "sister", Value: "Anna", Confidence: 0.9},
		{Category: extraction.InsightRelationship, Field: "sister", Value: "anna", Confidence: 0.9},
		{Category: extraction.InsightPreference, Field: "interest", Value: "Climbing", Confidence: 0.8},
		{Category: extraction.InsightPreference, Field: "interest", Value: "climbing", Confidence: 0.8},
	}

	p, err := svc.UpdateFromInsights(ctx, "user_001", "tenant_001", "", insights)
	require.NoError(t, err)
	assert.Len(t, p.Relationships.People, 1, "relationships deduplicate by normalized key")
	assert.Len(t, p.Preferences.Interests, 1)
}

func TestConfidenceIsMonotoneAndBounded(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	insights := []extraction.Insight{
		{Category: extraction.InsightProfessional, Field: "title", Value: "engineer", Confidence: 0.9},
		{Category: extraction.InsightProfessional, Field: "company", Value: "Visma", Confidence: 0.9},
		{Category: extraction.InsightGoal, Field: "goal", Value: "ship the migration", Confidence: 0.8},
		{Category: extraction.InsightStyle, Field: "formality", Value: "informal", Confidence: 0.7},
	}

	prev := 0.0
	for i := 0; i < 50; i++ {
		p, err := svc.UpdateFromInsights(ctx, "user_001", "tenant_001", "", insights)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, p.Confidence, prev, "confidence never regresses")
		assert.LessOrEqual(t, p.Confidence, 1.0, "confidence never exceeds 1")
		prev = p.Confidence
	}
}

func TestOptimisticVersioning(t *testing.T) {
	ctx := context.Background()
	store := persona.NewMemoryStore()

	p := &persona.UserPersona{UserID: "u", TenantID: "t"}
	require.NoError(t, store.Save(ctx, p))
	assert.Equal(t, int64(1), p.Version)

	stale := p.Clone()
	stale.Version = 0
	assert.ErrorIs(t, store.Save(ctx, stale), persona.ErrVersionConflict)

	require.NoError(t, store.Save(ctx, p), "saving with the current version succeeds")
	assert.Equal(t, int64(2), p.Version)
}

func TestGetNextProbingQuestion(t *testing.T) {
	svc := newService()

	p := &persona.UserPersona{}
	q := svc.GetNextProbingQuestion(p, nil)
	require.NotNil(t, q)
	assert.Equal(t, "prof-title", q.ID, "the highest-priority gap is asked first")
	assert.NotEmpty(t, q.Text("en"))
	assert.NotEmpty(t, q.Text("no"))
	assert.NotEqual(t, q.Text("en"), q.Text("no"))

	// Excluding the asked id moves to the next gap.
	next := svc.GetNextProbingQuestion(p, []string{"prof-title"})
	require.NotNil(t, next)
	assert.Equal(t, "prof-company", next.ID)

	// A filled field is no longer a gap.
	p.Professional.Title = "engineer"
	p.Professional.Company = "Visma"
	q = svc.GetNextProbingQuestion(p, nil)
	require.NotNil(t, q)
	assert.NotContains(t, []string{"prof-title", "prof-company"}, q.ID)
}

func TestGetNextProbingQuestionExhausted(t *testing.T) {
	svc := newService()

	p := &persona.UserPersona{}
	asked := make([]string, 0, len(persona.Catalog))
	for _, q := range persona.Catalog {
		asked = append(asked, q.ID)
	}

	assert.Nil(t, svc.GetNextProbingQuestion(p, asked), "no question left to ask")
}

func TestComposeEmailFormalStyle(t *testing.T) {
	svc := newService()

	p := &persona.UserPersona{}
	p.Style.Formality = "formal"
	p.Style.Verbosity = "verbose"

	email := svc.ComposeEmail(p, &persona.EmailRequest{
		RecipientName: "Kari",
		Purpose:       "Following up on our meeting",
		KeyPoints:     []string{"budget approved", "next review in March"},
	})

	assert.Equal(t, "Dear Kari,", email.Greeting)
	assert.Contains(t, email.Body, "budget approved")
	assert.Contains(t, email.Body, "key points")
	assert.Equal(t, "Kind regards,", email.Signoff)
	assert.Greater(t, email.StyleMatch, 0.5, "most style dimensions were learned")
}

func TestComposeEmailLearnedPhrasesWin(t *testing.T) {
	svc := newService()

	p := &persona.UserPersona{}
	p.Style.Formality = "formal"
	p.Style.Greetings = []string{"Heisann"}
	p.Style.Signoffs = []string{"Mvh"}

	email := svc.ComposeEmail(p, &persona.EmailRequest{RecipientName: "Ola", Purpose: "Quick update"})

	assert.Equal(t, "Heisann Ola,", email.Greeting, "observed phrases beat formality defaults")
	assert.Equal(t, "Mvh,", email.Signoff)
}

func TestComposeEmailNorwegian(t *testing.T) {
	svc := newService()

	p := &persona.UserPersona{}
	p.Style.Formality = "informal"
	p.Style.PreferredLanguage = "no"

	email := svc.ComposeEmail(p, &persona.EmailRequest{RecipientName: "Ola", Purpose: "Statusoppdatering"})

	assert.Equal(t, "Hei Ola,", email.Greeting)
	assert.Equal(t, "Hilsen,", email.Signoff)
}
