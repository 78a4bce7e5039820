// Package extraction turns raw conversational text into typed candidate
// signals: entities, facts, preferences, and conversational insights.
//
// The package is pattern-based: every extractor is a set of regular
// expression families with per-family confidence. A failed match is simply
// "no extraction", never an error, so extraction can never fail the caller's
// conversation turn. The Extractor interface keeps the implementation
// pluggable so a model-based extractor can replace the pattern one without
// touching the memory service.
package extraction

// EntityType identifies the kind of entity a matcher detected.
type EntityType string

const (
	EntityPerson       EntityType = "person"
	EntityOrganization EntityType = "organization"
	EntityLocation     EntityType = "location"
	EntityDate         EntityType = "date"
	EntityTime         EntityType = "time"
	EntityMoney        EntityType = "money"
	EntityEmail        EntityType = "email"
	EntityPhone        EntityType = "phone"
	EntityURL          EntityType = "url"
)

// Entity is a single span of text matched by an entity pattern.
type Entity struct {
	// Type is the entity type that matched.
	Type EntityType `json:"type"`

	// Value is the matched text with surrounding whitespace trimmed.
	Value string `json:"value"`

	// Start and End are byte offsets of the span in the source text.
	Start int `json:"start"`
	End   int `json:"end"`

	// Confidence is the type-specific confidence of the match (0.0-1.0).
	Confidence float64 `json:"confidence"`
}

// Fact is a subject/predicate/object triple derived from a pattern family.
//
// Facts about the user carry Subject "user"; facts about third parties carry
// the third party's name or role as Subject (e.g. "brother").
type Fact struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`

	// Confidence is fixed per pattern family, optionally boosted by
	// repetition across conversation turns (capped at +0.15).
	Confidence float64 `json:"confidence"`

	// AboutUser is true when the fact describes the user rather than a
	// third party mentioned by the user.
	AboutUser bool `json:"about_user"`

	// Evidence is the text span the fact was derived from.
	Evidence string `json:"evidence,omitempty"`
}

// Polarity marks whether a preference is for or against something.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// Strength grades how firmly a preference was expressed.
type Strength string

const (
	StrengthWeak     Strength = "weak"
	StrengthModerate Strength = "moderate"
	StrengthStrong   Strength = "strong"
)

// PreferenceCategory groups preferences by the concern they apply to.
type PreferenceCategory string

const (
	PrefCommunication PreferenceCategory = "communication"
	PrefScheduling    PreferenceCategory = "scheduling"
	PrefFormat        PreferenceCategory = "format"
	PrefLanguage      PreferenceCategory = "language"
	PrefFrequency     PreferenceCategory = "frequency"
	PrefWorkflow      PreferenceCategory = "workflow"
	PrefGeneral       PreferenceCategory = "general"
)

// Preference is a detected like/dislike signal with supporting evidence.
type Preference struct {
	Category   PreferenceCategory `json:"category"`
	Polarity   Polarity           `json:"polarity"`
	Strength   Strength           `json:"strength"`
	Topic      string             `json:"topic"`
	Evidence   string             `json:"evidence"`
	Confidence float64            `json:"confidence"`
}

// InsightCategory identifies which persona field an insight feeds.
type InsightCategory string

const (
	InsightProfessional InsightCategory = "professional"
	InsightPreference   InsightCategory = "preference"
	InsightGoal         InsightCategory = "goal"
	InsightChallenge    InsightCategory = "challenge"
	InsightRelationship InsightCategory = "relationship"
	InsightStyle        InsightCategory = "style"
)

// Insight is a higher-level signal extracted from a full conversation turn,
// intended to feed persona updates.
type Insight struct {
	// Category selects the persona field handler that applies this insight.
	Category InsightCategory `json:"category"`

	// Field is the persona field within the category (e.g. "title",
	// "company", "goal", "formality").
	Field string `json:"field"`

	// Value is the extracted value for the field.
	Value string `json:"value"`

	// Confidence is the extraction confidence (0.0-1.0), boosted by +0.1
	// when the assistant's response acknowledges the extracted value.
	Confidence float64 `json:"confidence"`

	// Evidence is the user text the insight was derived from.
	Evidence string `json:"evidence,omitempty"`
}

// Candidate is a proposed memory record produced by the pipeline. The memory
// service scores, filters, and persists candidates.
type Candidate struct {
	// Content is the text content of the proposed memory.
	Content string `json:"content"`

	// Type is the semantic memory type name (fact, preference, goal, ...).
	Type string `json:"type"`

	// Source describes how the candidate was acquired (explicit, inferred).
	Source string `json:"source"`

	// Confidence is the extraction confidence (0.0-1.0).
	Confidence float64 `json:"confidence"`

	// Tags are free-form labels derived from the extraction.
	Tags []string `json:"tags,omitempty"`

	// Metadata carries extraction provenance (pattern family, evidence).
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Result bundles everything one conversation turn yielded.
type Result struct {
	// Candidates are proposed memory records.
	Candidates []Candidate `json:"candidates"`

	// Entities are the raw entity spans found in the user message.
	Entities []Entity `json:"entities,omitempty"`

	// Insights are persona-feeding signals.
	Insights []Insight `json:"insights,omitempty"`
}

// Extractor is the pluggable extraction capability. The pattern-based
// Pipeline implements it today; a model-based extractor can implement it
// tomorrow without the memory service changing.
type Extractor interface {
	// Extract runs the full pipeline over one conversation turn.
	// assistantResponse may be empty when only user text is available.
	// Implementations must treat "nothing matched" as an empty Result,
	// not an error.
	Extract(userMessage, assistantResponse string) (*Result, error)
}

// Turn is one user/assistant exchange, used for multi-turn fact extraction.
type Turn struct {
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response,omitempty"`
}
