package ranking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelliclone/memengine-go/pkg/ranking"
	"github.com/intelliclone/memengine-go/pkg/storage"
)

func candidate(id int64, similarity, importance float64, age time.Duration) *storage.Memory {
	return &storage.Memory{
		ID:         id,
		Content:    "candidate",
		Score:      similarity,
		Importance: importance,
		CreatedAt:  time.Now().Add(-age),
	}
}

func TestRankEmptyCandidates(t *testing.T) {
	r := ranking.NewRanker(nil)

	ranked, err := r.Rank(nil, time.Now(), 10)
	require.NoError(t, err, "zero candidates is an empty bundle, not an error")
	assert.Empty(t, ranked)
}

func TestRankZeroLimitIsValidationError(t *testing.T) {
	r := ranking.NewRanker(nil)

	_, err := r.Rank([]*storage.Memory{candidate(1, 0.9, 0.5, 0)}, time.Now(), 0)
	assert.ErrorIs(t, err, ranking.ErrInvalidLimit)

	_, err = r.Rank([]*storage.Memory{candidate(1, 0.9, 0.5, 0)}, time.Now(), -3)
	assert.ErrorIs(t, err, ranking.ErrInvalidLimit)
}

func TestRankFiltersByMinSimilarity(t *testing.T) {
	r := ranking.NewRanker(nil)

	candidates := []*storage.Memory{
		candidate(1, 0.9, 0.5, 0),
		candidate(2, 0.4, 0.9, 0), // below the 0.5 default cutoff
	}

	ranked, err := r.Rank(candidates, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, int64(1), ranked[0].Memory.ID)
}

func TestRankImportanceBreaksSimilarityTies(t *testing.T) {
	r := ranking.NewRanker(nil)

	candidates := []*storage.Memory{
		candidate(1, 0.8, 0.2, time.Hour),
		candidate(2, 0.8, 0.9, time.Hour),
	}

	ranked, err := r.Rank(candidates, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(2), ranked[0].Memory.ID,
		"with equal similarity the more important memory ranks first")
}

func TestRankRecencyBreaksTies(t *testing.T) {
	r := ranking.NewRanker(nil)

	candidates := []*storage.Memory{
		candidate(1, 0.8, 0.5, 30*24*time.Hour),
		candidate(2, 0.8, 0.5, time.Hour),
	}

	ranked, err := r.Rank(candidates, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(2), ranked[0].Memory.ID,
		"with equal similarity and importance the fresher memory ranks first")
}

func TestRankSimilarityStaysDominant(t *testing.T) {
	r := ranking.NewRanker(nil)

	// A clearly more similar candidate beats a marginally more important
	// one: boosts are bounded multipliers, not the primary signal.
	candidates := []*storage.Memory{
		candidate(1, 0.95, 0.3, time.Hour),
		candidate(2, 0.55, 0.5, time.Hour),
	}

	ranked, err := r.Rank(candidates, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(1), ranked[0].Memory.ID)
}

func TestRankDiversityRejectsNearDuplicates(t *testing.T) {
	r := ranking.NewRanker(nil)

	a := candidate(1, 0.9, 0.8, time.Hour)
	a.Embedding = []float32{1, 0, 0}
	b := candidate(2, 0.85, 0.8, time.Hour) // near-duplicate of a
	b.Embedding = []float32{0.99, 0.14, 0}
	c := candidate(3, 0.7, 0.8, time.Hour) // orthogonal, survives
	c.Embedding = []float32{0, 1, 0}

	ranked, err := r.Rank([]*storage.Memory{a, b, c}, time.Now(), 10)
	require.NoError(t, err)

	ids := make([]int64, len(ranked))
	for i, rr := range ranked {
		ids[i] = rr.Memory.ID
	}
	assert.Equal(t, []int64{1, 3}, ids, "the near-duplicate is rejected, the diverse one kept")

	// No surviving pair exceeds the diversity threshold.
	for i, x := range ranked {
		for _, y := range ranked[i+1:] {
			sim := storage.Cosine(x.Memory.Embedding, y.Memory.Embedding)
			assert.LessOrEqual(t, sim, 0.8)
		}
	}
}

func TestRankHonorsLimit(t *testing.T) {
	r := ranking.NewRanker(nil)

	candidates := []*storage.Memory{
		candidate(1, 0.9, 0.9, 0),
		candidate(2, 0.8, 0.8, 0),
		candidate(3, 0.7, 0.7, 0),
		candidate(4, 0.6, 0.6, 0),
	}

	ranked, err := r.Rank(candidates, time.Now(), 2)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)
	assert.Equal(t, int64(1), ranked[0].Memory.ID)
	assert.Equal(t, int64(2), ranked[1].Memory.ID)
}

func TestMemoriesCarriesFinalRank(t *testing.T) {
	r := ranking.NewRanker(nil)

	ranked, err := r.Rank([]*storage.Memory{candidate(1, 0.9, 0.5, 0)}, time.Now(), 5)
	require.NoError(t, err)

	memories := ranking.Memories(ranked)
	require.Len(t, memories, 1)
	assert.Equal(t, ranked[0].Rank, memories[0].Score,
		"the returned record carries the combined rank, not the raw similarity")
	assert.Greater(t, memories[0].Score, 0.9, "boosts raise the score above raw similarity")
}
