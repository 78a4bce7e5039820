package extraction

import (
	"regexp"
	"sort"
	"strings"
)

// entityPattern couples a compiled regex with the entity type it detects and
// the confidence assigned to its matches. When the regex has a capture
// group, group 1 is the entity value; otherwise the whole match is used.
type entityPattern struct {
	entityType EntityType
	re         *regexp.Regexp
	confidence float64
	group      int
}

var entityPatterns = []entityPattern{
	// High-precision structured formats first.
	{EntityEmail, regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`), 0.98, 0},
	{EntityURL, regexp.MustCompile(`https?://[^\s<>"]+|www\.[^\s<>"]+`), 0.95, 0},
	{EntityPhone, regexp.MustCompile(`\+?\d[\d\s\-()]{6,}\d`), 0.80, 0},
	{EntityMoney, regexp.MustCompile(`(?:[$€£]|NOK|USD|EUR|kr)\s?\d[\d,.]*|\d[\d,.]*\s?(?:dollars|euros|kroner|kr)\b`), 0.90, 0},

	// Dates and times.
	{EntityDate, regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}[./]\d{1,2}[./]\d{2,4}\b`), 0.92, 0},
	{EntityDate, regexp.MustCompile(`(?i)\b(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?\b`), 0.88, 0},
	{EntityDate, regexp.MustCompile(`(?i)\b(?:today|tomorrow|yesterday|next week|last week|next month|last month)\b`), 0.70, 0},
	{EntityTime, regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}(?::\d{2})?\s?(?:am|pm)?\b|\b\d{1,2}\s?(?:am|pm)\b`), 0.85, 0},

	// Names and places, pattern-anchored to reduce false positives.
	{EntityPerson, regexp.MustCompile(`(?i)\bmy name is\s+([A-ZÆØÅ][a-zæøå]+(?:\s+[A-ZÆØÅ][a-zæøå]+)?)`), 0.95, 1},
	{EntityPerson, regexp.MustCompile(`(?i)\b(?:i'?m|i am)\s+([A-ZÆØÅ][a-zæøå]+\s+[A-ZÆØÅ][a-zæøå]+)\b`), 0.75, 1},
	{EntityPerson, regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr)\.?\s+([A-ZÆØÅ][a-zæøå]+(?:\s+[A-ZÆØÅ][a-zæøå]+)?)`), 0.90, 1},
	{EntityOrganization, regexp.MustCompile(`\b([A-ZÆØÅ][A-Za-zæøå0-9&]+(?:\s+[A-ZÆØÅ][A-Za-zæøå0-9&]+)*)\s+(?:AS|ASA|Inc\.?|LLC|Ltd\.?|GmbH|Corp\.?)\b`), 0.92, 0},
	{EntityOrganization, regexp.MustCompile(`(?i)\b(?:work(?:s|ing)? (?:at|for)|employed (?:at|by)|company is)\s+([A-ZÆØÅ][A-Za-zæøå0-9&]+(?:\s+[A-ZÆØÅ][A-Za-zæøå0-9&]+)*)`), 0.85, 1},
	{EntityLocation, regexp.MustCompile(`(?i)\b(?:live(?:s)? in|based in|located in|moved to|from)\s+([A-ZÆØÅ][a-zæøå]+(?:\s+[A-ZÆØÅ][a-zæøå]+)?)`), 0.80, 1},
}

// ExtractEntities runs every entity matcher over the text and resolves
// overlapping spans, keeping the higher-confidence match when two spans
// intersect and breaking ties by longer span.
//
// Returns the surviving entities sorted by start offset. An empty result is
// normal for text with no recognizable entities.
func ExtractEntities(text string) []Entity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var found []Entity
	for _, p := range entityPatterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			if p.group > 0 && len(loc) > 2*p.group && loc[2*p.group] >= 0 {
				start, end = loc[2*p.group], loc[2*p.group+1]
			}
			value := strings.TrimSpace(text[start:end])
			if value == "" {
				continue
			}
			found = append(found, Entity{
				Type:       p.entityType,
				Value:      value,
				Start:      start,
				End:        end,
				Confidence: p.confidence,
			})
		}
	}

	return resolveOverlaps(found)
}

// resolveOverlaps removes intersecting spans. For each overlapping pair the
// higher-confidence entity wins; equal confidence keeps the longer span.
func resolveOverlaps(entities []Entity) []Entity {
	if len(entities) <= 1 {
		return entities
	}

	// Strongest first so a single pass can greedily keep winners.
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].Confidence != entities[j].Confidence {
			return entities[i].Confidence > entities[j].Confidence
		}
		return (entities[i].End - entities[i].Start) > (entities[j].End - entities[j].Start)
	})

	var kept []Entity
	for _, e := range entities {
		overlaps := false
		for _, k := range kept {
			if e.Start < k.End && k.Start < e.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, e)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}
