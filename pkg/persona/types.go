// Package persona maintains the per-user persona aggregate: the evolving
// model of a user's communication style, professional context, preferences,
// and relationships, learned incrementally from extracted insights.
package persona

import (
	"time"
)

// CommunicationStyle captures how the user writes.
type CommunicationStyle struct {
	// Formality is "formal", "informal", or "" when unobserved.
	Formality string `json:"formality,omitempty"`

	// Verbosity is "verbose", "concise", or "" when unobserved.
	Verbosity string `json:"verbosity,omitempty"`

	// Directness is "direct", "indirect", or "" when unobserved.
	Directness string `json:"directness,omitempty"`

	// Emotionality is "expressive", "reserved", or "" when unobserved.
	Emotionality string `json:"emotionality,omitempty"`

	// Technicality is "technical", "plain", or "" when unobserved.
	Technicality string `json:"technicality,omitempty"`

	// PreferredLanguage is a BCP 47-ish tag, e.g. "en" or "no".
	PreferredLanguage string `json:"preferred_language,omitempty"`

	// Greetings and Signoffs are phrases observed in the user's own
	// writing, most recent last.
	Greetings []string `json:"greetings,omitempty"`
	Signoffs  []string `json:"signoffs,omitempty"`
}

// ProfessionalProfile captures the user's work context.
type ProfessionalProfile struct {
	Title            string   `json:"title,omitempty"`
	Company          string   `json:"company,omitempty"`
	TeamSize         int      `json:"team_size,omitempty"`
	Responsibilities []string `json:"responsibilities,omitempty"`
	Goals            []string `json:"goals,omitempty"`
	Challenges       []string `json:"challenges,omitempty"`
}

// PersonalPreferences captures interests and interaction preferences.
type PersonalPreferences struct {
	Interests        []string `json:"interests,omitempty"`
	AvoidedTopics    []string `json:"avoided_topics,omitempty"`
	PreferredFormat  string   `json:"preferred_format,omitempty"`
	UrgencyTolerance string   `json:"urgency_tolerance,omitempty"`
}

// Contact is a named person in the user's life.
type Contact struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// ImportantDate is a date the user cares about, stored as free text.
type ImportantDate struct {
	Label string `json:"label"`
	Date  string `json:"date"`
}

// Relationships collects the people, organizations, and dates around the
// user.
type Relationships struct {
	People        []Contact       `json:"people,omitempty"`
	Organizations []string        `json:"organizations,omitempty"`
	Dates         []ImportantDate `json:"dates,omitempty"`
}

// UserPersona is the aggregate, one per (user, tenant, optional bot scope).
type UserPersona struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	BotID    string `json:"bot_id,omitempty"`

	Style         CommunicationStyle  `json:"style"`
	Professional  ProfessionalProfile `json:"professional"`
	Preferences   PersonalPreferences `json:"preferences"`
	Relationships Relationships       `json:"relationships"`

	// Facts is a free-form bag of learned statements keyed by category.
	Facts map[string][]string `json:"facts,omitempty"`

	// Confidence reflects accumulated evidence volume and field coverage.
	// Never exceeds 1 and never decreases as evidence accumulates.
	Confidence float64 `json:"confidence"`

	// ConversationCount is how many conversation turns contributed.
	ConversationCount int `json:"conversation_count"`

	// Version is the optimistic-concurrency counter, incremented on every
	// successful save.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy, so callers can mutate freely without aliasing
// the stored aggregate.
func (p *UserPersona) Clone() *UserPersona {
	cp := *p
	cp.Style.Greetings = append([]string(nil), p.Style.Greetings...)
	cp.Style.Signoffs = append([]string(nil), p.Style.Signoffs...)
	cp.Professional.Responsibilities = append([]string(nil), p.Professional.Responsibilities...)
	cp.Professional.Goals = append([]string(nil), p.Professional.Goals...)
	cp.Professional.Challenges = append([]string(nil), p.Professional.Challenges...)
	cp.Preferences.Interests = append([]string(nil), p.Preferences.Interests...)
	cp.Preferences.AvoidedTopics = append([]string(nil), p.Preferences.AvoidedTopics...)
	cp.Relationships.People = append([]Contact(nil), p.Relationships.People...)
	cp.Relationships.Organizations = append([]string(nil), p.Relationships.Organizations...)
	cp.Relationships.Dates = append([]ImportantDate(nil), p.Relationships.Dates...)
	if p.Facts != nil {
		cp.Facts = make(map[string][]string, len(p.Facts))
		for k, v := range p.Facts {
			cp.Facts[k] = append([]string(nil), v...)
		}
	}
	return &cp
}
