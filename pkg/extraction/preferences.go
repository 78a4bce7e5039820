package extraction

import (
	"regexp"
	"strings"
)

// preferencePattern detects a category-scoped like/dislike signal. Group 1,
// when present, captures the topic the preference applies to.
type preferencePattern struct {
	category   PreferenceCategory
	polarity   Polarity
	re         *regexp.Regexp
	confidence float64
}

var preferencePatterns = []preferencePattern{
	// Communication channel and tone.
	{PrefCommunication, PolarityPositive, regexp.MustCompile(`(?i)\b(?:prefer|rather)\s+(?:to be contacted |contact )?(?:by|via|over)\s+(email|phone|chat|slack|teams|sms|text)`), 0.85},
	{PrefCommunication, PolarityNegative, regexp.MustCompile(`(?i)\b(?:don'?t|do not|never)\s+(?:call|phone)\s*(me)?\b`), 0.85},
	{PrefCommunication, PolarityPositive, regexp.MustCompile(`(?i)\bkeep (?:it|things|messages)\s+(short|brief|concise|formal|casual|informal)`), 0.80},

	// Scheduling.
	{PrefScheduling, PolarityPositive, regexp.MustCompile(`(?i)\b(?:prefer|like)\s+(?:meetings?|calls?)\s+(?:in the\s+)?(mornings?|afternoons?|evenings?)`), 0.85},
	{PrefScheduling, PolarityNegative, regexp.MustCompile(`(?i)\bno (?:meetings?|calls?)\s+(?:on\s+)?(mondays?|tuesdays?|wednesdays?|thursdays?|fridays?|weekends?|[a-z]+days)`), 0.85},
	{PrefScheduling, PolarityNegative, regexp.MustCompile(`(?i)\b(?:don'?t|do not) (?:book|schedule) (?:me |anything )?(?:before|after)\s+(\d{1,2}(?::\d{2})?\s?(?:am|pm)?)`), 0.80},

	// Format of delivered information.
	{PrefFormat, PolarityPositive, regexp.MustCompile(`(?i)\b(?:prefer|like|want)\s+(bullet points?|summaries|summary|details?|tables?|examples?|numbers|visuals?)`), 0.80},
	{PrefFormat, PolarityNegative, regexp.MustCompile(`(?i)\b(?:skip|no need for|don'?t (?:send|include))\s+(details?|long (?:emails?|reports?)|attachments?)`), 0.75},

	// Language.
	{PrefLanguage, PolarityPositive, regexp.MustCompile(`(?i)\b(?:prefer|write|answer|reply)(?:\s+(?:to me|in))?\s+in\s+(english|norwegian|norsk|swedish|danish|german|french|spanish)`), 0.90},

	// Frequency of contact.
	{PrefFrequency, PolarityPositive, regexp.MustCompile(`(?i)\b(?:update me|check in|send (?:me )?(?:updates?|reports?))\s+(daily|weekly|monthly|every [a-z\s]+?day)`), 0.85},
	{PrefFrequency, PolarityNegative, regexp.MustCompile(`(?i)\b(?:too many|fewer|less)\s+(emails?|notifications?|messages?|updates?)`), 0.75},

	// Workflow habits.
	{PrefWorkflow, PolarityPositive, regexp.MustCompile(`(?i)\b(?:always|please)\s+(cc|copy|loop in|include)\s+([\w\s@.]+?)(?:[.,!?]|$)`), 0.75},
	{PrefWorkflow, PolarityPositive, regexp.MustCompile(`(?i)\bi (?:usually|normally|always)\s+([\w\sæøå]{3,50}?)(?:[.,!?]|$)`), 0.60},

	// Generic fallback signals.
	{PrefGeneral, PolarityPositive, regexp.MustCompile(`(?i)\bi (?:really )?(?:like|love|prefer|enjoy)\s+([\w\sæøå\-]{2,60}?)(?:[.,!?]|$)`), 0.70},
	{PrefGeneral, PolarityNegative, regexp.MustCompile(`(?i)\bi (?:really )?(?:hate|dislike|can'?t stand|avoid)\s+([\w\sæøå\-]{2,60}?)(?:[.,!?]|$)`), 0.70},
}

// strongMarkers upgrade a preference to StrengthStrong when present in the
// evidence span; weakMarkers downgrade to StrengthWeak.
var (
	strongMarkers = []string{"always", "never", "really", "absolutely", "definitely", "hate", "love", "must"}
	weakMarkers   = []string{"maybe", "slightly", "a bit", "somewhat", "kind of", "sometimes", "usually"}
)

// DetectPreferences scans text for preference signals and returns one
// Preference per match with category, polarity, graded strength, and the
// matched evidence span.
func DetectPreferences(text string) []Preference {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var prefs []Preference
	seen := make(map[string]bool)

	for _, p := range preferencePatterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			evidence := strings.TrimSpace(m[0])
			topic := ""
			if len(m) > 1 {
				topic = strings.TrimSpace(m[len(m)-1])
			}

			key := string(p.category) + "|" + string(p.polarity) + "|" + strings.ToLower(topic)
			if seen[key] {
				continue
			}
			seen[key] = true

			prefs = append(prefs, Preference{
				Category:   p.category,
				Polarity:   p.polarity,
				Strength:   gradeStrength(evidence),
				Topic:      topic,
				Evidence:   evidence,
				Confidence: p.confidence,
			})
		}
	}
	return prefs
}

func gradeStrength(evidence string) Strength {
	lower := strings.ToLower(evidence)
	for _, marker := range strongMarkers {
		if strings.Contains(lower, marker) {
			return StrengthStrong
		}
	}
	for _, marker := range weakMarkers {
		if strings.Contains(lower, marker) {
			return StrengthWeak
		}
	}
	return StrengthModerate
}
