package chromem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelliclone/memengine-go/pkg/storage"
	"github.com/intelliclone/memengine-go/pkg/storage/chromem"
)

var scope = storage.Scope{UserID: "user_001", TenantID: "tenant_001"}

func seed(id int64, embedding []float32, importance float64) *storage.Memory {
	now := time.Now()
	return &storage.Memory{
		ID:         id,
		UserID:     scope.UserID,
		TenantID:   scope.TenantID,
		Type:       storage.TypeFact,
		Content:    "memory content",
		Source:     storage.SourceExplicit,
		Tier:       storage.TierWorking,
		Importance: importance,
		DecayScore: 1.0,
		Embedding:  embedding,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	store := chromem.New()

	m := seed(1, []float32{1, 0, 0}, 0.7)
	require.NoError(t, store.Save(ctx, m))

	got, err := store.Get(ctx, 1, scope)
	require.NoError(t, err)
	assert.Equal(t, m.Content, got.Content)
	assert.Equal(t, m.Importance, got.Importance)

	// Wrong scope is invisible.
	_, err = store.Get(ctx, 1, storage.Scope{UserID: "other", TenantID: scope.TenantID})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestVectorSearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	store := chromem.New()

	require.NoError(t, store.Save(ctx, seed(1, []float32{1, 0, 0}, 0.5)))
	require.NoError(t, store.Save(ctx, seed(2, []float32{0.6, 0.8, 0}, 0.5)))
	require.NoError(t, store.Save(ctx, seed(3, []float32{0, 0, 1}, 0.5)))

	results, err := store.VectorSearch(ctx, []float32{1, 0, 0}, scope.UserID, scope.TenantID, &storage.SearchOptions{
		Limit:         10,
		MinSimilarity: 0.5,
	})
	require.NoError(t, err)

	require.Len(t, results, 2, "the orthogonal memory falls below the cutoff")
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, int64(2), results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestVectorSearchEmptyScope(t *testing.T) {
	ctx := context.Background()
	store := chromem.New()

	results, err := store.VectorSearch(ctx, []float32{1, 0, 0}, "nobody", "tenant_001", nil)
	require.NoError(t, err, "an empty scope yields an empty result, not an error")
	assert.Empty(t, results)
}

func TestSoftDeleteHidesFromSearch(t *testing.T) {
	ctx := context.Background()
	store := chromem.New()

	require.NoError(t, store.Save(ctx, seed(1, []float32{1, 0, 0}, 0.5)))
	require.NoError(t, store.SoftDelete(ctx, 1, scope))

	results, err := store.VectorSearch(ctx, []float32{1, 0, 0}, scope.UserID, scope.TenantID, &storage.SearchOptions{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, results)

	// Still retained for audit.
	audit, err := store.VectorSearch(ctx, []float32{1, 0, 0}, scope.UserID, scope.TenantID, &storage.SearchOptions{
		Limit:              10,
		IncludeSoftDeleted: true,
	})
	require.NoError(t, err)
	assert.Len(t, audit, 1)
}

func TestUpdateTierAndDecay(t *testing.T) {
	ctx := context.Background()
	store := chromem.New()

	require.NoError(t, store.Save(ctx, seed(1, []float32{1, 0, 0}, 0.9)))

	require.NoError(t, store.UpdateTier(ctx, 1, storage.TierShortTerm))
	sweptAt := time.Now()
	require.NoError(t, store.UpdateDecay(ctx, 1, 0.42, sweptAt))

	got, err := store.Get(ctx, 1, scope)
	require.NoError(t, err)
	assert.Equal(t, storage.TierShortTerm, got.Tier)
	assert.InDelta(t, 0.42, got.DecayScore, 1e-9)
	require.NotNil(t, got.LastDecayAt)

	// The watermark excludes the record from the next consolidation batch.
	due, err := store.GetForConsolidation(ctx, scope, sweptAt.Add(-time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestUpdateAccess(t *testing.T) {
	ctx := context.Background()
	store := chromem.New()

	require.NoError(t, store.Save(ctx, seed(1, []float32{1, 0, 0}, 0.5)))
	require.NoError(t, store.UpdateAccess(ctx, 1, time.Now()))
	require.NoError(t, store.UpdateAccess(ctx, 1, time.Now()))

	got, err := store.Get(ctx, 1, scope)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AccessCount)
	assert.NotNil(t, got.LastAccessedAt)
}

func TestCountByUser(t *testing.T) {
	ctx := context.Background()
	store := chromem.New()

	require.NoError(t, store.Save(ctx, seed(1, []float32{1, 0, 0}, 0.5)))
	m2 := seed(2, []float32{0, 1, 0}, 0.5)
	m2.Tier = storage.TierLongTerm
	require.NoError(t, store.Save(ctx, m2))

	total, err := store.CountByUser(ctx, scope.UserID, scope.TenantID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	working := storage.TierWorking
	count, err := store.CountByUser(ctx, scope.UserID, scope.TenantID, &working)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	store := chromem.New()

	old := seed(1, []float32{1, 0, 0}, 0.5)
	old.CreatedAt = time.Now().Add(-72 * time.Hour)
	require.NoError(t, store.Save(ctx, old))
	require.NoError(t, store.Save(ctx, seed(2, []float32{0, 1, 0}, 0.5)))

	cleaned, err := store.CleanupExpired(ctx, map[storage.Tier]time.Duration{
		storage.TierWorking: 48 * time.Hour,
	}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, cleaned)

	got, err := store.Get(ctx, 1, scope)
	require.NoError(t, err)
	assert.True(t, got.Deleted, "expiry is a soft delete, retained for audit")
}

func TestHardDelete(t *testing.T) {
	ctx := context.Background()
	store := chromem.New()

	require.NoError(t, store.Save(ctx, seed(1, []float32{1, 0, 0}, 0.5)))
	require.NoError(t, store.HardDelete(ctx, 1, scope))

	_, err := store.Get(ctx, 1, scope)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
