package extraction

import (
	"fmt"
	"strings"
)

// Pipeline is the pattern-based implementation of Extractor.
//
// It runs the entity, fact, preference, and insight extractors over one
// conversation turn and converts the results into memory candidates:
//   - facts become "fact" candidates (or "relationship" when the predicate
//     names a person around the user)
//   - preferences become "preference" candidates
//   - goal insights become "goal" candidates
//
// Candidates below MinConfidence are dropped before they reach the caller.
//
// Example usage:
//
//	pipeline := extraction.NewPipeline(0.6)
//	result, _ := pipeline.Extract("I work as a backend engineer at Visma", "Nice!")
//	// result.Candidates holds the proposed memories,
//	// result.Insights feeds the persona service.
type Pipeline struct {
	// MinConfidence is the floor below which candidates are discarded.
	MinConfidence float64
}

// NewPipeline creates a pattern-based extraction pipeline. A minConfidence
// of 0 keeps every candidate.
func NewPipeline(minConfidence float64) *Pipeline {
	return &Pipeline{MinConfidence: minConfidence}
}

// Extract implements Extractor. It never returns a non-nil error; the error
// is part of the signature so a model-based extractor can report transport
// failures through the same interface.
func (p *Pipeline) Extract(userMessage, assistantResponse string) (*Result, error) {
	result := &Result{}
	if strings.TrimSpace(userMessage) == "" {
		return result, nil
	}

	result.Entities = ExtractEntities(userMessage)
	result.Insights = ExtractInsights(userMessage, assistantResponse)

	for _, f := range ExtractFacts(userMessage) {
		if f.Confidence < p.MinConfidence {
			continue
		}
		result.Candidates = append(result.Candidates, candidateFromFact(f))
	}

	for _, pref := range DetectPreferences(userMessage) {
		if pref.Confidence < p.MinConfidence {
			continue
		}
		result.Candidates = append(result.Candidates, candidateFromPreference(pref))
	}

	for _, ins := range result.Insights {
		if ins.Category != InsightGoal || ins.Confidence < p.MinConfidence {
			continue
		}
		result.Candidates = append(result.Candidates, Candidate{
			Content:    "User's goal: " + ins.Value,
			Type:       "goal",
			Source:     "inferred",
			Confidence: ins.Confidence,
			Tags:       []string{"goal"},
			Metadata:   map[string]interface{}{"evidence": ins.Evidence},
		})
	}

	return result, nil
}

func candidateFromFact(f Fact) Candidate {
	subject := "User"
	if !f.AboutUser {
		subject = "User's " + f.Subject
	}

	var content string
	switch f.Predicate {
	case "has_job_title":
		content = fmt.Sprintf("%s works as %s", subject, f.Object)
	case "works_at":
		content = fmt.Sprintf("%s works at %s", subject, f.Object)
	case "lives_in":
		content = fmt.Sprintf("%s lives in %s", subject, f.Object)
	case "has_skill":
		content = fmt.Sprintf("%s is skilled in %s", subject, f.Object)
	case "likes":
		content = fmt.Sprintf("%s likes %s", subject, f.Object)
	case "dislikes":
		content = fmt.Sprintf("%s dislikes %s", subject, f.Object)
	case "prefers":
		content = fmt.Sprintf("%s prefers %s", subject, f.Object)
	default:
		content = fmt.Sprintf("%s %s %s", subject, strings.ReplaceAll(f.Predicate, "_", " "), f.Object)
	}

	memType := "fact"
	if strings.HasPrefix(f.Predicate, "has_") && f.Predicate != "has_job_title" && f.Predicate != "has_skill" {
		memType = "relationship"
	} else if f.Predicate == "has_skill" {
		memType = "skill"
	} else if f.Predicate == "likes" || f.Predicate == "dislikes" || f.Predicate == "prefers" {
		memType = "preference"
	}

	return Candidate{
		Content:    content,
		Type:       memType,
		Source:     "explicit",
		Confidence: f.Confidence,
		Tags:       []string{f.Predicate},
		Metadata: map[string]interface{}{
			"subject":   f.Subject,
			"predicate": f.Predicate,
			"object":    f.Object,
			"evidence":  f.Evidence,
		},
	}
}

func candidateFromPreference(pref Preference) Candidate {
	verb := "prefers"
	if pref.Polarity == PolarityNegative {
		verb = "dislikes"
	}
	topic := pref.Topic
	if topic == "" {
		topic = pref.Evidence
	}

	return Candidate{
		Content:    fmt.Sprintf("User %s %s (%s)", verb, topic, pref.Category),
		Type:       "preference",
		Source:     "explicit",
		Confidence: pref.Confidence,
		Tags:       []string{string(pref.Category), string(pref.Polarity)},
		Metadata: map[string]interface{}{
			"category": string(pref.Category),
			"polarity": string(pref.Polarity),
			"strength": string(pref.Strength),
			"evidence": pref.Evidence,
		},
	}
}
