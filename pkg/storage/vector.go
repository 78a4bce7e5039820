package storage

import "math"

// Cosine computes cosine similarity between two vectors, returning 0 when
// dimensions differ or either vector has zero norm.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MatchesSearchFilters reports whether a memory passes the pre-rank filters
// in opts (tiers, types, tags, exclusions, soft-delete visibility, bot
// sub-scope). Backends without native filtering apply this in process.
func MatchesSearchFilters(m *Memory, opts *SearchOptions) bool {
	if opts == nil {
		return !m.Deleted
	}
	if m.Deleted && !opts.IncludeSoftDeleted {
		return false
	}
	if opts.BotID != "" && m.BotID != opts.BotID {
		return false
	}
	if len(opts.Tiers) > 0 && !containsTier(opts.Tiers, m.Tier) {
		return false
	}
	if len(opts.Types) > 0 && !containsType(opts.Types, m.Type) {
		return false
	}
	if len(opts.Tags) > 0 && !hasAnyTag(m.Tags, opts.Tags) {
		return false
	}
	for _, id := range opts.ExcludeIDs {
		if m.ID == id {
			return false
		}
	}
	return true
}

func containsTier(tiers []Tier, t Tier) bool {
	for _, tier := range tiers {
		if tier == t {
			return true
		}
	}
	return false
}

func containsType(types []MemoryType, t MemoryType) bool {
	for _, typ := range types {
		if typ == t {
			return true
		}
	}
	return false
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
