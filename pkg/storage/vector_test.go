package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/intelliclone/memengine-go/pkg/storage"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, storage.Cosine([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, storage.Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, storage.Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Degenerate inputs collapse to zero rather than erroring.
	assert.Equal(t, 0.0, storage.Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, storage.Cosine([]float32{0, 0}, []float32{1, 0}))
}

func TestMatchesSearchFilters(t *testing.T) {
	m := &storage.Memory{
		ID:    1,
		BotID: "bot_a",
		Tier:  storage.TierShortTerm,
		Type:  storage.TypePreference,
		Tags:  []string{"email", "contact"},
	}

	assert.True(t, storage.MatchesSearchFilters(m, nil))
	assert.True(t, storage.MatchesSearchFilters(m, &storage.SearchOptions{}))

	assert.False(t, storage.MatchesSearchFilters(m, &storage.SearchOptions{BotID: "bot_b"}))
	assert.True(t, storage.MatchesSearchFilters(m, &storage.SearchOptions{BotID: "bot_a"}))

	assert.False(t, storage.MatchesSearchFilters(m, &storage.SearchOptions{
		Tiers: []storage.Tier{storage.TierLongTerm},
	}))
	assert.True(t, storage.MatchesSearchFilters(m, &storage.SearchOptions{
		Tiers: []storage.Tier{storage.TierWorking, storage.TierShortTerm},
	}))

	assert.False(t, storage.MatchesSearchFilters(m, &storage.SearchOptions{
		Types: []storage.MemoryType{storage.TypeGoal},
	}))
	assert.True(t, storage.MatchesSearchFilters(m, &storage.SearchOptions{
		Tags: []string{"contact"},
	}))
	assert.False(t, storage.MatchesSearchFilters(m, &storage.SearchOptions{
		Tags: []string{"billing"},
	}))

	assert.False(t, storage.MatchesSearchFilters(m, &storage.SearchOptions{ExcludeIDs: []int64{1}}))

	deleted := *m
	deleted.Deleted = true
	assert.False(t, storage.MatchesSearchFilters(&deleted, &storage.SearchOptions{}))
	assert.True(t, storage.MatchesSearchFilters(&deleted, &storage.SearchOptions{IncludeSoftDeleted: true}))
}
