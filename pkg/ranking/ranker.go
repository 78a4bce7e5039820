// Package ranking re-scores vector search candidates for retrieval.
//
// The final rank of a candidate combines vector similarity with boosts for
// recency and stored importance, then a diversity pass drops candidates that
// are near-duplicates of something already selected.
package ranking

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/intelliclone/memengine-go/pkg/storage"
)

// Config holds the ranking weights and filters.
type Config struct {
	// RecencyWeight scales the recency boost.
	RecencyWeight float64

	// ImportanceWeight scales the importance boost.
	ImportanceWeight float64

	// MinSimilarity drops candidates below this raw similarity before any
	// boosting.
	MinSimilarity float64

	// DiversityThreshold is the pairwise similarity above which a
	// candidate counts as a near-duplicate of an already selected result.
	DiversityThreshold float64

	// RecencyHalfLifeDays controls how fast the recency boost fades.
	RecencyHalfLifeDays float64

	// DefaultLimit is the result cap callers should fall back to when a
	// request does not specify one. Rank itself requires a positive limit.
	DefaultLimit int
}

// DefaultConfig returns the default ranking configuration.
func DefaultConfig() *Config {
	return &Config{
		RecencyWeight:       0.3,
		ImportanceWeight:    0.4,
		MinSimilarity:       0.5,
		DiversityThreshold:  0.8,
		RecencyHalfLifeDays: 7,
		DefaultLimit:        20,
	}
}

// ErrInvalidLimit is returned when the requested result limit is not
// positive.
var ErrInvalidLimit = errors.New("ranking: limit must be positive")

// Ranked pairs a memory with its computed rank and components.
type Ranked struct {
	Memory *storage.Memory

	// Similarity is the raw vector similarity from search.
	Similarity float64

	// Rank is the final combined score used for ordering.
	Rank float64
}

// Ranker re-scores and filters search candidates.
type Ranker struct {
	cfg *Config
}

// NewRanker creates a ranker. A nil config uses DefaultConfig.
func NewRanker(cfg *Config) *Ranker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Ranker{cfg: cfg}
}

// Rank orders candidates by combined score and applies the diversity pass.
//
// Candidates below the minimum similarity are dropped before boosting. The
// combined score is
//
//	rank = similarity + recencyWeight*recency + importanceWeight*importance
//
// where recency = e^(-ln2 * ageDays / halfLife). Ties in rank are broken by
// similarity, then by newer creation time, then by lower ID, so the ordering
// is deterministic. An empty candidate set returns an empty slice, not an
// error; a non-positive limit returns ErrInvalidLimit.
func (r *Ranker) Rank(candidates []*storage.Memory, now time.Time, limit int) ([]*Ranked, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if len(candidates) == 0 {
		return []*Ranked{}, nil
	}

	ranked := make([]*Ranked, 0, len(candidates))
	for _, mem := range candidates {
		if mem.Score < r.cfg.MinSimilarity {
			continue
		}
		ranked = append(ranked, &Ranked{
			Memory:     mem,
			Similarity: mem.Score,
			Rank:       r.score(mem, now),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Rank != ranked[j].Rank {
			return ranked[i].Rank > ranked[j].Rank
		}
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		if !ranked[i].Memory.CreatedAt.Equal(ranked[j].Memory.CreatedAt) {
			return ranked[i].Memory.CreatedAt.After(ranked[j].Memory.CreatedAt)
		}
		return ranked[i].Memory.ID < ranked[j].Memory.ID
	})

	return r.diversify(ranked, limit), nil
}

// score computes the combined rank for one memory.
func (r *Ranker) score(mem *storage.Memory, now time.Time) float64 {
	return mem.Score +
		r.cfg.RecencyWeight*r.recency(mem, now) +
		r.cfg.ImportanceWeight*mem.Importance
}

// recency maps age to (0, 1]: 1 for brand new, 0.5 at the half-life.
func (r *Ranker) recency(mem *storage.Memory, now time.Time) float64 {
	ageDays := now.Sub(mem.CreatedAt).Hours() / 24.0
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-math.Ln2 * ageDays / r.cfg.RecencyHalfLifeDays)
}

// diversify greedily selects from the rank-ordered list, skipping any
// candidate whose embedding is too similar to one already selected. When
// embeddings are missing the candidate is kept; diversity is best effort.
func (r *Ranker) diversify(ranked []*Ranked, limit int) []*Ranked {
	selected := make([]*Ranked, 0, limit)
	for _, cand := range ranked {
		if len(selected) >= limit {
			break
		}
		if r.nearDuplicate(cand, selected) {
			continue
		}
		selected = append(selected, cand)
	}
	return selected
}

func (r *Ranker) nearDuplicate(cand *Ranked, selected []*Ranked) bool {
	if len(cand.Memory.Embedding) == 0 {
		return false
	}
	for _, s := range selected {
		if len(s.Memory.Embedding) == 0 {
			continue
		}
		if storage.Cosine(cand.Memory.Embedding, s.Memory.Embedding) > r.cfg.DiversityThreshold {
			return true
		}
	}
	return false
}

// Memories unwraps a ranked list back to plain memory records, preserving
// order. The per-memory Score field is overwritten with the final rank.
func Memories(ranked []*Ranked) []*storage.Memory {
	out := make([]*storage.Memory, len(ranked))
	for i, r := range ranked {
		r.Memory.Score = r.Rank
		out[i] = r.Memory
	}
	return out
}
