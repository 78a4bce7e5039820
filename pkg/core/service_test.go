package core_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intelliclone/memengine-go/pkg/core"
	"github.com/intelliclone/memengine-go/pkg/embedder"
	"github.com/intelliclone/memengine-go/pkg/persona"
	"github.com/intelliclone/memengine-go/pkg/scoring"
	"github.com/intelliclone/memengine-go/pkg/storage"
)

const testDims = 8

// fakeEmbedder returns a fixed unit vector for every text.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, *embedder.Report, error) {
	vec := make([]float32, testDims)
	vec[0] = 1
	return vec, &embedder.Report{Tokens: len(text)}, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, *embedder.Report, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _, _ = f.Embed(ctx, t)
	}
	return out, &embedder.Report{}, nil
}

func (fakeEmbedder) Similarity(a, b []float32) float64  { return embedder.CosineSimilarity(a, b) }
func (fakeEmbedder) Dimensions() int                    { return testDims }
func (fakeEmbedder) HealthCheck(ctx context.Context) error { return nil }
func (fakeEmbedder) Close() error                       { return nil }

// fakeStore is an in-memory storage.Store with real cosine search.
type fakeStore struct {
	mu       sync.Mutex
	memories map[int64]*storage.Memory
}

func newFakeStore() *fakeStore {
	return &fakeStore{memories: make(map[int64]*storage.Memory)}
}

func (f *fakeStore) Save(ctx context.Context, m *storage.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.memories[m.ID] = &cp
	return nil
}

func (f *fakeStore) SaveBatch(ctx context.Context, ms []*storage.Memory) error {
	for _, m := range ms {
		if err := f.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id int64, scope storage.Scope) (*storage.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) Update(ctx context.Context, m *storage.Memory) error {
	return f.Save(ctx, m)
}

func (f *fakeStore) SoftDelete(ctx context.Context, id int64, scope storage.Scope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.Deleted = true
	return nil
}

func (f *fakeStore) HardDelete(ctx context.Context, id int64, scope storage.Scope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.memories, id)
	return nil
}

func (f *fakeStore) DeleteBatch(ctx context.Context, ids []int64, scope storage.Scope) error {
	for _, id := range ids {
		_ = f.HardDelete(ctx, id, scope)
	}
	return nil
}

func (f *fakeStore) VectorSearch(ctx context.Context, query []float32, userID, tenantID string, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*storage.Memory
	for _, m := range f.memories {
		if m.UserID != userID || m.TenantID != tenantID {
			continue
		}
		if !storage.MatchesSearchFilters(m, opts) {
			continue
		}
		score := storage.Cosine(query, m.Embedding)
		if opts != nil && score < opts.MinSimilarity {
			continue
		}
		cp := *m
		cp.Score = score
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if opts != nil && opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeStore) FindByCriteria(ctx context.Context, c *storage.Criteria) ([]*storage.Memory, error) {
	return nil, nil
}

func (f *fakeStore) GetForConsolidation(ctx context.Context, scope storage.Scope, sweptBefore time.Time, limit int) ([]*storage.Memory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*storage.Memory
	for _, m := range f.memories {
		if m.Deleted || m.UserID != scope.UserID {
			continue
		}
		if m.LastDecayAt != nil && !m.LastDecayAt.Before(sweptBefore) {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) CountByUser(ctx context.Context, userID, tenantID string, t *storage.Tier) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.memories {
		if m.Deleted || m.UserID != userID {
			continue
		}
		if t != nil && m.Tier != *t {
			continue
		}
		count++
	}
	return count, nil
}

func (f *fakeStore) UpdateTier(ctx context.Context, id int64, t storage.Tier) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.Tier = t
	return nil
}

func (f *fakeStore) UpdateDecay(ctx context.Context, id int64, decayScore float64, sweptAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.DecayScore = decayScore
	at := sweptAt
	m.LastDecayAt = &at
	return nil
}

func (f *fakeStore) UpdateAccess(ctx context.Context, id int64, accessedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.memories[id]
	if !ok {
		return storage.ErrNotFound
	}
	at := accessedAt
	m.LastAccessedAt = &at
	m.AccessCount++
	return nil
}

func (f *fakeStore) CleanupExpired(ctx context.Context, ttls map[storage.Tier]time.Duration, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cleaned := 0
	for _, m := range f.memories {
		ttl, ok := ttls[m.Tier]
		if !ok || m.Deleted {
			continue
		}
		if now.Sub(m.CreatedAt) > ttl {
			m.Deleted = true
			cleaned++
		}
	}
	return cleaned, nil
}

func (f *fakeStore) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                          { return nil }

var testScope = storage.Scope{UserID: "user_001", TenantID: "tenant_001"}

func newService(t *testing.T, store storage.Store, opts ...core.ServiceOption) *core.MemoryService {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.EmbeddingDimension = testDims
	svc, err := core.NewMemoryService(cfg, store, fakeEmbedder{}, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewMemoryServiceValidation(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.EmbeddingDimension = testDims

	_, err := core.NewMemoryService(cfg, nil, fakeEmbedder{})
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	mismatched := core.DefaultConfig() // 1536, provider outputs 8
	_, err = core.NewMemoryService(mismatched, newFakeStore(), fakeEmbedder{})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestStoreValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakeStore())

	_, err := svc.Store(ctx, &core.StoreRequest{Scope: testScope, Content: "   "})
	assert.ErrorIs(t, err, core.ErrEmptyContent)
	assert.False(t, core.IsRetryable(err), "validation errors are never retryable")

	_, err = svc.Store(ctx, &core.StoreRequest{
		Scope:     testScope,
		Content:   "User works at Visma",
		Embedding: []float32{1, 2, 3},
	})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestStoreAssignsDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakeStore())

	mem, err := svc.Store(ctx, &core.StoreRequest{Scope: testScope, Content: "User works at Visma"})
	require.NoError(t, err)

	assert.NotZero(t, mem.ID)
	assert.Equal(t, storage.TierWorking, mem.Tier)
	assert.Equal(t, storage.TypeFact, mem.Type)
	assert.Len(t, mem.Embedding, testDims)
	assert.Greater(t, mem.Importance, 0.0, "the scorer runs when no importance is precomputed")
	assert.LessOrEqual(t, mem.Importance, 1.0)
	assert.False(t, mem.CreatedAt.IsZero())
}

// unitVec builds a vector with equal similarity to the query axis but low
// pairwise similarity to its siblings, so ranking ties on similarity while
// the diversity pass keeps all of them.
func unitVec(axis int) []float32 {
	vec := make([]float32, testDims)
	vec[0] = 0.8
	vec[axis] = 0.6
	return vec
}

func TestRetrieveRanksByCompositeScore(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store)

	importances := []float64{0.9, 0.2, 0.8, 0.3, 0.95}
	ids := make([]int64, len(importances))
	for i, imp := range importances {
		imp := imp
		mem, err := svc.Store(ctx, &core.StoreRequest{
			Scope:      testScope,
			Content:    "memory about the user",
			Embedding:  unitVec(i + 1),
			Importance: &imp,
		})
		require.NoError(t, err)
		ids[i] = mem.ID
	}

	// The 0.8 memory is soft-deleted and must not come back.
	require.NoError(t, store.SoftDelete(ctx, ids[2], testScope))

	result, err := svc.Retrieve(ctx, "what do we know", testScope, core.WithLimit(3))
	require.NoError(t, err)
	require.Len(t, result.Memories, 3)

	got := []float64{
		result.Memories[0].Importance,
		result.Memories[1].Importance,
		result.Memories[2].Importance,
	}
	assert.Equal(t, []float64{0.95, 0.9, 0.3}, got,
		"equal similarity means importance decides the order, soft-deleted excluded")

	assert.GreaterOrEqual(t, result.Memories[0].Score, result.Memories[1].Score)
	assert.GreaterOrEqual(t, result.Memories[1].Score, result.Memories[2].Score)

	assert.Contains(t, result.ContextBlock, "memory about the user")
}

func TestRetrieveBumpsAccess(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store)

	mem, err := svc.Store(ctx, &core.StoreRequest{
		Scope: testScope, Content: "User prefers email", Embedding: unitVec(1),
	})
	require.NoError(t, err)

	_, err = svc.Retrieve(ctx, "contact preference", testScope, core.WithLimit(5))
	require.NoError(t, err)

	stored, err := store.Get(ctx, mem.ID, testScope)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AccessCount)
	assert.NotNil(t, stored.LastAccessedAt)
}

func TestRetrieveZeroLimitIsValidationError(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakeStore())

	_, err := svc.Retrieve(ctx, "anything", testScope, core.WithLimit(-1))
	assert.Error(t, err)
	assert.False(t, core.IsRetryable(err))
}

func TestRetrieveEmptyStoreReturnsEmptyBundle(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakeStore())

	result, err := svc.Retrieve(ctx, "anything", testScope)
	require.NoError(t, err)
	assert.Empty(t, result.Memories)
	assert.Empty(t, result.ContextBlock)
}

func TestExtractFromConversationEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	personas := persona.NewService(persona.NewMemoryStore(), nil)
	svc := newService(t, store, core.WithPersonaService(personas))

	memories, err := svc.ExtractFromConversation(ctx,
		"I work as a backend engineer at Visma",
		"Nice, a backend engineer at Visma!",
		testScope)
	require.NoError(t, err)
	require.NotEmpty(t, memories, "the occupation facts should be stored")

	var contents []string
	for _, m := range memories {
		contents = append(contents, m.Content)
		assert.Equal(t, testScope.UserID, m.UserID)
		assert.Greater(t, m.Importance, 0.0)
	}
	assert.Contains(t, contents, "User works as backend engineer")
	assert.Contains(t, contents, "User works at Visma")

	// The insights reached the persona aggregate.
	p, err := personas.GetOrCreatePersona(ctx, testScope.UserID, testScope.TenantID, "")
	require.NoError(t, err)
	assert.Equal(t, "backend engineer", p.Professional.Title)
	assert.Equal(t, "Visma", p.Professional.Company)
}

func TestExtractFromConversationPersistsBreakdown(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store)

	memories, err := svc.ExtractFromConversation(ctx,
		"I work as a backend engineer at Visma",
		"Nice, a backend engineer at Visma!",
		testScope)
	require.NoError(t, err)
	require.NotEmpty(t, memories)

	// The factor breakdown must survive the round trip through storage, not
	// just decorate the returned record.
	for _, m := range memories {
		saved, err := store.Get(ctx, m.ID, testScope)
		require.NoError(t, err)
		assert.NotEqual(t, scoring.Breakdown{}, saved.Breakdown,
			"persisted record %d lost its importance breakdown", m.ID)
		assert.Equal(t, m.Breakdown, saved.Breakdown)
	}
}

func TestExtractFromConversationNothingToExtract(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, newFakeStore())

	memories, err := svc.ExtractFromConversation(ctx, "ok, thanks", "You're welcome!", testScope)
	require.NoError(t, err, "an empty extraction is not an error")
	assert.Empty(t, memories)
}

func TestConsolidatePromotesEligibleMemories(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store)

	// Seed directly so the record is old enough to clear the dwell gate.
	created := time.Now().Add(-3 * time.Hour)
	require.NoError(t, store.Save(ctx, &storage.Memory{
		ID: 42, UserID: testScope.UserID, TenantID: testScope.TenantID,
		Type: storage.TypeFact, Content: "seed", Tier: storage.TierWorking,
		Importance: 0.9, DecayScore: 1.0, Embedding: unitVec(1),
		CreatedAt: created, UpdatedAt: created,
	}))

	count, err := svc.Consolidate(ctx, testScope)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	mem, err := store.Get(ctx, 42, testScope)
	require.NoError(t, err)
	assert.Equal(t, storage.TierShortTerm, mem.Tier)

	// Second run right after: idempotent, no further changes.
	count, err = svc.Consolidate(ctx, testScope)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReinforceRestoresDecay(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store)

	created := time.Now().Add(-time.Hour)
	require.NoError(t, store.Save(ctx, &storage.Memory{
		ID: 7, UserID: testScope.UserID, TenantID: testScope.TenantID,
		Type: storage.TypeFact, Content: "seed", Tier: storage.TierShortTerm,
		Importance: 0.5, DecayScore: 0.4, Embedding: unitVec(1),
		CreatedAt: created, UpdatedAt: created,
	}))

	require.NoError(t, svc.Reinforce(ctx, 7, testScope))

	mem, err := store.Get(ctx, 7, testScope)
	require.NoError(t, err)
	assert.Greater(t, mem.DecayScore, 0.4)
	assert.Equal(t, 1, mem.AccessCount)
}

func TestHealthCheck(t *testing.T) {
	svc := newService(t, newFakeStore())
	assert.NoError(t, svc.HealthCheck(context.Background()))
}
