package persona

// ProbingQuestion is a static catalog entry used to actively fill persona
// gaps. Text is carried in English and Norwegian; the caller picks by the
// persona's preferred language.
type ProbingQuestion struct {
	ID       string
	Category string
	TextEN   string
	TextNO   string

	// Priority orders questions when several gaps are open.
	Priority float64

	// gap reports whether the question's target field is still unfilled.
	gap func(p *UserPersona) bool
}

// Text returns the question in the given language, defaulting to English.
func (q *ProbingQuestion) Text(lang string) string {
	if lang == "no" || lang == "nb" || lang == "nn" {
		return q.TextNO
	}
	return q.TextEN
}

// Catalog is the static probing-question catalog.
var Catalog = []ProbingQuestion{
	{
		ID:       "prof-title",
		Category: "professional",
		TextEN:   "What do you do for work?",
		TextNO:   "Hva jobber du med?",
		Priority: 1.0,
		gap:      func(p *UserPersona) bool { return p.Professional.Title == "" },
	},
	{
		ID:       "prof-company",
		Category: "professional",
		TextEN:   "Which company or organization do you work for?",
		TextNO:   "Hvilket selskap eller organisasjon jobber du for?",
		Priority: 0.9,
		gap:      func(p *UserPersona) bool { return p.Professional.Company == "" },
	},
	{
		ID:       "prof-goals",
		Category: "professional",
		TextEN:   "What are you working towards right now?",
		TextNO:   "Hva jobber du mot akkurat nå?",
		Priority: 0.8,
		gap:      func(p *UserPersona) bool { return len(p.Professional.Goals) == 0 },
	},
	{
		ID:       "prof-challenges",
		Category: "professional",
		TextEN:   "What is the biggest challenge on your plate at the moment?",
		TextNO:   "Hva er den største utfordringen du står overfor for tiden?",
		Priority: 0.7,
		gap:      func(p *UserPersona) bool { return len(p.Professional.Challenges) == 0 },
	},
	{
		ID:       "pref-interests",
		Category: "preference",
		TextEN:   "What topics are you most interested in?",
		TextNO:   "Hvilke temaer interesserer deg mest?",
		Priority: 0.6,
		gap:      func(p *UserPersona) bool { return len(p.Preferences.Interests) == 0 },
	},
	{
		ID:       "pref-format",
		Category: "preference",
		TextEN:   "Do you prefer short summaries or detailed explanations?",
		TextNO:   "Foretrekker du korte oppsummeringer eller detaljerte forklaringer?",
		Priority: 0.5,
		gap:      func(p *UserPersona) bool { return p.Preferences.PreferredFormat == "" },
	},
	{
		ID:       "style-language",
		Category: "style",
		TextEN:   "Which language would you like me to use?",
		TextNO:   "Hvilket språk vil du at jeg skal bruke?",
		Priority: 0.5,
		gap:      func(p *UserPersona) bool { return p.Style.PreferredLanguage == "" },
	},
	{
		ID:       "rel-people",
		Category: "relationship",
		TextEN:   "Who do you work with most closely?",
		TextNO:   "Hvem jobber du tettest med?",
		Priority: 0.4,
		gap:      func(p *UserPersona) bool { return len(p.Relationships.People) == 0 },
	},
}

// GetNextProbingQuestion returns the highest-priority catalog question whose
// target persona field is still a gap, excluding already-asked ids. Returns
// nil when every gap is filled or asked.
func (s *Service) GetNextProbingQuestion(p *UserPersona, askedIDs []string) *ProbingQuestion {
	asked := make(map[string]bool, len(askedIDs))
	for _, id := range askedIDs {
		asked[id] = true
	}

	var best *ProbingQuestion
	for i := range Catalog {
		q := &Catalog[i]
		if asked[q.ID] || !q.gap(p) {
			continue
		}
		if best == nil || q.Priority > best.Priority {
			best = q
		}
	}
	return best
}
