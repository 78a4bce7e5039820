package extraction

import (
	"fmt"
	"regexp"
	"strings"
)

// factPattern is one member of a pattern family. Each capture group listed in
// emit produces one fact; confidence is fixed per family member.
type factPattern struct {
	family     string
	re         *regexp.Regexp
	confidence float64

	// emit builds facts from the submatch. Returning nil means the match
	// did not yield a usable fact (e.g. empty capture).
	emit func(m []string, evidence string) []Fact
}

const (
	// maxRepetitionBoost caps the confidence boost a fact can earn from
	// being repeated across conversation turns.
	maxRepetitionBoost = 0.15

	// repetitionBoostStep is the per-repetition confidence increment.
	repetitionBoostStep = 0.05
)

var factPatterns = []factPattern{
	// Occupation family: job title and employer.
	{
		family:     "occupation",
		re:         regexp.MustCompile(`(?i)\bi work as (?:an?\s+)?([a-zæøå][a-zæøå\s\-]{1,40}?)\s+(?:at|for)\s+([A-ZÆØÅ][\w&]*(?:\s+[A-ZÆØÅ][\w&]*)*)`),
		confidence: 0.85,
		emit: func(m []string, ev string) []Fact {
			return []Fact{
				userFact("has_job_title", strings.TrimSpace(m[1]), 0.85, ev),
				userFact("works_at", strings.TrimSpace(m[2]), 0.85, ev),
			}
		},
	},
	{
		family:     "occupation",
		re:         regexp.MustCompile(`(?i)\bi(?:'m| am) (?:an?\s+)?([a-zæøå][a-zæøå\s\-]{1,40}?(?:er|or|ist|ant|ect|eer|ian|yst|ager))\b`),
		confidence: 0.75,
		emit: func(m []string, ev string) []Fact {
			return []Fact{userFact("has_job_title", strings.TrimSpace(m[1]), 0.75, ev)}
		},
	},
	{
		family:     "occupation",
		re:         regexp.MustCompile(`(?i)\bi work (?:at|for)\s+([A-ZÆØÅ][\w&]*(?:\s+[A-ZÆØÅ][\w&]*)*)`),
		confidence: 0.85,
		emit: func(m []string, ev string) []Fact {
			return []Fact{userFact("works_at", strings.TrimSpace(m[1]), 0.85, ev)}
		},
	},

	// Relationship family: named people around the user.
	{
		family:     "relationships",
		re:         regexp.MustCompile(`(?i)\bmy (wife|husband|partner|boss|manager|colleague|coworker|friend|brother|sister|mother|father|mom|dad|son|daughter)(?:'s name)? is (?:named |called )?([A-ZÆØÅ][a-zæøå]+(?:\s+[A-ZÆØÅ][a-zæøå]+)?)`),
		confidence: 0.90,
		emit: func(m []string, ev string) []Fact {
			return []Fact{{
				Subject:    "user",
				Predicate:  "has_" + strings.ToLower(m[1]),
				Object:     strings.TrimSpace(m[2]),
				Confidence: 0.90,
				AboutUser:  true,
				Evidence:   ev,
			}}
		},
	},
	{
		family:     "relationships",
		re:         regexp.MustCompile(`(?i)\bmy (wife|husband|partner|boss|manager|colleague|coworker|friend|brother|sister|son|daughter) ([a-zæøå\s]{0,40}?(?:works|lives|is based)) (?:at|in|for)\s+([A-ZÆØÅ][\w&]*(?:\s+[A-ZÆØÅ][\w&]*)*)`),
		confidence: 0.70,
		emit: func(m []string, ev string) []Fact {
			pred := "works_at"
			if strings.Contains(m[2], "live") || strings.Contains(m[2], "based") {
				pred = "lives_in"
			}
			return []Fact{{
				Subject:    strings.ToLower(m[1]),
				Predicate:  pred,
				Object:     strings.TrimSpace(m[3]),
				Confidence: 0.70,
				AboutUser:  false,
				Evidence:   ev,
			}}
		},
	},

	// Preference family expressed as a fact triple.
	{
		family:     "preferences",
		re:         regexp.MustCompile(`(?i)\bi (?:really )?(like|love|prefer|enjoy|hate|dislike)\s+([\w\sæøå\-]{2,60}?)(?:[.,!?]|$)`),
		confidence: 0.80,
		emit: func(m []string, ev string) []Fact {
			pred := "likes"
			switch strings.ToLower(m[1]) {
			case "hate", "dislike":
				pred = "dislikes"
			case "prefer":
				pred = "prefers"
			}
			return []Fact{userFact(pred, strings.TrimSpace(m[2]), 0.80, ev)}
		},
	},

	// Location family.
	{
		family:     "location",
		re:         regexp.MustCompile(`(?i)\bi (?:live|stay) in\s+([A-ZÆØÅ][a-zæøå]+(?:\s+[A-ZÆØÅ][a-zæøå]+)?)`),
		confidence: 0.90,
		emit: func(m []string, ev string) []Fact {
			return []Fact{userFact("lives_in", strings.TrimSpace(m[1]), 0.90, ev)}
		},
	},
	{
		family:     "location",
		re:         regexp.MustCompile(`(?i)\bi(?:'m| am) (?:based|located) in\s+([A-ZÆØÅ][a-zæøå]+(?:\s+[A-ZÆØÅ][a-zæøå]+)?)`),
		confidence: 0.85,
		emit: func(m []string, ev string) []Fact {
			return []Fact{userFact("lives_in", strings.TrimSpace(m[1]), 0.85, ev)}
		},
	},

	// Skills family.
	{
		family:     "skills",
		re:         regexp.MustCompile(`(?i)\bi(?:'m| am) (?:good at|experienced (?:in|with)|skilled (?:in|at))\s+([\w\sæøå\-+#]{2,50}?)(?:[.,!?]|$)`),
		confidence: 0.80,
		emit: func(m []string, ev string) []Fact {
			return []Fact{userFact("has_skill", strings.TrimSpace(m[1]), 0.80, ev)}
		},
	},
	{
		family:     "skills",
		re:         regexp.MustCompile(`(?i)\bi know (?:how to\s+)?([\w\sæøå\-+#]{2,50}?)(?:[.,!?]|$)`),
		confidence: 0.65,
		emit: func(m []string, ev string) []Fact {
			return []Fact{userFact("has_skill", strings.TrimSpace(m[1]), 0.65, ev)}
		},
	},
}

func userFact(predicate, object string, confidence float64, evidence string) Fact {
	return Fact{
		Subject:    "user",
		Predicate:  predicate,
		Object:     object,
		Confidence: confidence,
		AboutUser:  true,
		Evidence:   evidence,
	}
}

// ExtractFacts extracts subject/predicate/object triples from a single text.
//
// Confidence is fixed per pattern family. Facts whose object is empty after
// trimming are discarded. The order of results follows pattern declaration
// order, then match order within the text.
func ExtractFacts(text string) []Fact {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var facts []Fact
	for _, p := range factPatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			for _, f := range p.emit(m, strings.TrimSpace(m[0])) {
				if f.Object == "" {
					continue
				}
				facts = append(facts, f)
			}
		}
	}
	return facts
}

// ExtractFactsFromConversation extracts facts across multiple turns,
// deduplicates them by (subject, predicate, normalized object) keeping the
// highest confidence, and boosts confidence proportionally to how many turns
// repeated the fact. The boost is repetitionBoostStep per extra occurrence,
// capped at maxRepetitionBoost, and the final confidence never exceeds 1.0.
//
// Running the same conversation through twice yields the same deduplicated
// set; the boost is a function of the occurrence count, not of repeated calls.
func ExtractFactsFromConversation(turns []Turn) []Fact {
	type slot struct {
		fact  Fact
		count int
	}

	byKey := make(map[string]*slot)
	var order []string

	for _, turn := range turns {
		for _, f := range ExtractFacts(turn.UserMessage) {
			key := factKey(f)
			if s, ok := byKey[key]; ok {
				s.count++
				if f.Confidence > s.fact.Confidence {
					s.fact = f
				}
			} else {
				byKey[key] = &slot{fact: f, count: 1}
				order = append(order, key)
			}
		}
	}

	facts := make([]Fact, 0, len(order))
	for _, key := range order {
		s := byKey[key]
		boost := repetitionBoostStep * float64(s.count-1)
		if boost > maxRepetitionBoost {
			boost = maxRepetitionBoost
		}
		f := s.fact
		f.Confidence += boost
		if f.Confidence > 1.0 {
			f.Confidence = 1.0
		}
		facts = append(facts, f)
	}
	return facts
}

func factKey(f Fact) string {
	return fmt.Sprintf("%s|%s|%s", strings.ToLower(f.Subject), f.Predicate, normalizeObject(f.Object))
}

func normalizeObject(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
