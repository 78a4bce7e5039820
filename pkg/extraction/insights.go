package extraction

import (
	"regexp"
	"strings"
)

// acknowledgementBoost is added to an insight's confidence when the
// assistant's response appears to acknowledge the extracted value.
const acknowledgementBoost = 0.1

var (
	goalPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmy goal is (?:to\s+)?([\w\sæøå\-,]{3,80}?)(?:[.!?]|$)`),
		regexp.MustCompile(`(?i)\bi(?:'m| am) (?:trying|aiming|working) to\s+([\w\sæøå\-,]{3,80}?)(?:[.!?]|$)`),
		regexp.MustCompile(`(?i)\bi want to\s+([\w\sæøå\-,]{3,80}?)(?:[.!?]|$)`),
		regexp.MustCompile(`(?i)\bwe(?:'re| are) (?:planning|hoping) to\s+([\w\sæøå\-,]{3,80}?)(?:[.!?]|$)`),
	}

	challengePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bi(?:'m| am) struggling with\s+([\w\sæøå\-,]{3,80}?)(?:[.!?]|$)`),
		regexp.MustCompile(`(?i)\b(?:my|our) (?:biggest |main )?(?:problem|challenge|issue) is\s+([\w\sæøå\-,]{3,80}?)(?:[.!?]|$)`),
		regexp.MustCompile(`(?i)\bi (?:find it hard|have trouble) (?:to\s+)?([\w\sæøå\-,]{3,80}?)(?:[.!?]|$)`),
	}

	formalGreetings   = regexp.MustCompile(`(?i)^\s*(?:dear|good (?:morning|afternoon|evening)|to whom it may concern)`)
	informalGreetings = regexp.MustCompile(`(?i)^\s*(?:hey|hi|yo|hiya|sup)\b`)
)

// ExtractInsights derives persona-feeding signals from one conversation turn.
//
// It reuses the fact and preference detectors and adds goal, challenge, and
// communication-style detection. When the assistant's response contains the
// extracted value (case-insensitive substring), the insight's confidence is
// boosted by acknowledgementBoost, capped at 1.0 — an acknowledged extraction
// is more likely to be correct.
func ExtractInsights(userMessage, assistantResponse string) []Insight {
	if strings.TrimSpace(userMessage) == "" {
		return nil
	}

	var insights []Insight

	// Professional and relationship facts.
	for _, f := range ExtractFacts(userMessage) {
		switch f.Predicate {
		case "has_job_title":
			insights = append(insights, Insight{
				Category: InsightProfessional, Field: "title",
				Value: f.Object, Confidence: f.Confidence, Evidence: f.Evidence,
			})
		case "works_at":
			insights = append(insights, Insight{
				Category: InsightProfessional, Field: "company",
				Value: f.Object, Confidence: f.Confidence, Evidence: f.Evidence,
			})
		case "likes", "prefers":
			insights = append(insights, Insight{
				Category: InsightPreference, Field: "interest",
				Value: f.Object, Confidence: f.Confidence, Evidence: f.Evidence,
			})
		case "dislikes":
			insights = append(insights, Insight{
				Category: InsightPreference, Field: "avoided_topic",
				Value: f.Object, Confidence: f.Confidence, Evidence: f.Evidence,
			})
		default:
			if strings.HasPrefix(f.Predicate, "has_") && f.AboutUser {
				role := strings.TrimPrefix(f.Predicate, "has_")
				insights = append(insights, Insight{
					Category: InsightRelationship, Field: role,
					Value: f.Object, Confidence: f.Confidence, Evidence: f.Evidence,
				})
			}
		}
	}

	// Goals and challenges.
	for _, re := range goalPatterns {
		for _, m := range re.FindAllStringSubmatch(userMessage, -1) {
			insights = append(insights, Insight{
				Category: InsightGoal, Field: "goal",
				Value: strings.TrimSpace(m[1]), Confidence: 0.75,
				Evidence: strings.TrimSpace(m[0]),
			})
		}
	}
	for _, re := range challengePatterns {
		for _, m := range re.FindAllStringSubmatch(userMessage, -1) {
			insights = append(insights, Insight{
				Category: InsightChallenge, Field: "challenge",
				Value: strings.TrimSpace(m[1]), Confidence: 0.75,
				Evidence: strings.TrimSpace(m[0]),
			})
		}
	}

	// Style cues from the message itself.
	insights = append(insights, styleInsights(userMessage)...)

	// Acknowledgement boost.
	if assistantResponse != "" {
		lowerResp := strings.ToLower(assistantResponse)
		for i := range insights {
			if insights[i].Value == "" {
				continue
			}
			if strings.Contains(lowerResp, strings.ToLower(insights[i].Value)) {
				insights[i].Confidence += acknowledgementBoost
				if insights[i].Confidence > 1.0 {
					insights[i].Confidence = 1.0
				}
			}
		}
	}

	return insights
}

// styleInsights derives communication-style signals: greeting formality,
// verbosity from message length, and emotionality from exclamation density.
func styleInsights(text string) []Insight {
	var insights []Insight

	switch {
	case formalGreetings.MatchString(text):
		insights = append(insights, Insight{
			Category: InsightStyle, Field: "formality", Value: "formal", Confidence: 0.70,
		})
	case informalGreetings.MatchString(text):
		insights = append(insights, Insight{
			Category: InsightStyle, Field: "formality", Value: "informal", Confidence: 0.70,
		})
	}

	words := len(strings.Fields(text))
	if words > 80 {
		insights = append(insights, Insight{
			Category: InsightStyle, Field: "verbosity", Value: "verbose", Confidence: 0.60,
		})
	} else if words > 0 && words < 10 {
		insights = append(insights, Insight{
			Category: InsightStyle, Field: "verbosity", Value: "concise", Confidence: 0.60,
		})
	}

	if strings.Count(text, "!") >= 2 {
		insights = append(insights, Insight{
			Category: InsightStyle, Field: "emotionality", Value: "expressive", Confidence: 0.60,
		})
	}

	return insights
}
