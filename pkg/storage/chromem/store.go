// Package chromem provides an embedded, in-process implementation of the
// storage.Store interface backed by chromem-go.
//
// chromem-go is a pure Go embedded vector database. This backend keeps the
// authoritative memory records in process memory and delegates
// nearest-neighbor search to a per-scope chromem collection, which makes it
// suitable for local development and tests where no database is available.
package chromem

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/intelliclone/memengine-go/pkg/storage"
)

// Store implements storage.Store with chromem-go vector search.
type Store struct {
	db *chromem.DB

	mu          sync.RWMutex
	memories    map[int64]*storage.Memory
	collections map[string]*chromem.Collection
}

// New creates a new embedded store.
func New() *Store {
	return &Store{
		db:          chromem.NewDB(),
		memories:    make(map[int64]*storage.Memory),
		collections: make(map[string]*chromem.Collection),
	}
}

// collection returns the chromem collection for a (user, tenant) pair,
// creating it on first use. Per-scope collections give tenant isolation the
// same way per-user collections do in larger deployments.
func (s *Store) collection(userID, tenantID string) (*chromem.Collection, error) {
	name := fmt.Sprintf("mem_%s_%s", tenantID, userID)

	s.mu.RLock()
	col, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		return col, nil
	}

	col, err := s.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[name] = col
	return col, nil
}

// Save persists a new memory and indexes its embedding.
func (s *Store) Save(ctx context.Context, m *storage.Memory) error {
	col, err := s.collection(m.UserID, m.TenantID)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	if err := col.AddDocument(ctx, chromem.Document{
		ID:        strconv.FormatInt(m.ID, 10),
		Content:   m.Content,
		Embedding: m.Embedding,
	}); err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	s.mu.Lock()
	cp := *m
	s.memories[m.ID] = &cp
	s.mu.Unlock()
	return nil
}

// SaveBatch persists several memories, stopping at the first failure.
func (s *Store) SaveBatch(ctx context.Context, ms []*storage.Memory) error {
	for _, m := range ms {
		if err := s.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Get retrieves a memory by ID within a scope.
func (s *Store) Get(ctx context.Context, id int64, scope storage.Scope) (*storage.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memories[id]
	if !ok || m.UserID != scope.UserID || m.TenantID != scope.TenantID {
		return nil, storage.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// Update rewrites a memory's mutable fields and re-indexes the embedding.
func (s *Store) Update(ctx context.Context, m *storage.Memory) error {
	s.mu.Lock()
	existing, ok := s.memories[m.ID]
	if !ok || existing.UserID != m.UserID || existing.TenantID != m.TenantID {
		s.mu.Unlock()
		return storage.ErrNotFound
	}
	existing.Content = m.Content
	existing.Embedding = m.Embedding
	existing.Importance = m.Importance
	existing.Breakdown = m.Breakdown
	existing.DecayScore = m.DecayScore
	existing.Tier = m.Tier
	existing.Tags = m.Tags
	existing.UpdatedAt = time.Now()
	s.mu.Unlock()

	col, err := s.collection(m.UserID, m.TenantID)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	docID := strconv.FormatInt(m.ID, 10)
	_ = col.Delete(ctx, nil, nil, docID)
	if err := col.AddDocument(ctx, chromem.Document{
		ID:        docID,
		Content:   m.Content,
		Embedding: m.Embedding,
	}); err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	return nil
}

// SoftDelete marks a memory deleted; it stays indexed but is filtered from
// search unless IncludeSoftDeleted is set.
func (s *Store) SoftDelete(ctx context.Context, id int64, scope storage.Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok || m.UserID != scope.UserID || m.TenantID != scope.TenantID {
		return storage.ErrNotFound
	}
	m.Deleted = true
	m.UpdatedAt = time.Now()
	return nil
}

// HardDelete permanently removes a memory and its index entry.
func (s *Store) HardDelete(ctx context.Context, id int64, scope storage.Scope) error {
	s.mu.Lock()
	m, ok := s.memories[id]
	if !ok || m.UserID != scope.UserID || m.TenantID != scope.TenantID {
		s.mu.Unlock()
		return storage.ErrNotFound
	}
	delete(s.memories, id)
	s.mu.Unlock()

	col, err := s.collection(scope.UserID, scope.TenantID)
	if err != nil {
		return fmt.Errorf("HardDelete: %w", err)
	}
	if err := col.Delete(ctx, nil, nil, strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("HardDelete: %w", err)
	}
	return nil
}

// DeleteBatch permanently removes several memories. Per-item isolation:
// a missing record does not stop the rest of the batch.
func (s *Store) DeleteBatch(ctx context.Context, ids []int64, scope storage.Scope) error {
	var firstErr error
	for _, id := range ids {
		if err := s.HardDelete(ctx, id, scope); err != nil && firstErr == nil && err != storage.ErrNotFound {
			firstErr = err
		}
	}
	return firstErr
}

// VectorSearch queries the scoped chromem collection and maps results back
// to full memory records, applying the pre-rank filters in process.
func (s *Store) VectorSearch(ctx context.Context, queryVec []float32, userID, tenantID string, opts *storage.SearchOptions) ([]*storage.Memory, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	col, err := s.collection(userID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("VectorSearch: %w", err)
	}

	// chromem requires nResults <= collection size; fetch everything and
	// filter here, which is fine at embedded-backend scale.
	n := col.Count()
	if n == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, queryVec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("VectorSearch: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var memories []*storage.Memory
	for _, r := range results {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			continue
		}
		m, ok := s.memories[id]
		if !ok || m.UserID != userID || m.TenantID != tenantID {
			continue
		}
		if !storage.MatchesSearchFilters(m, opts) {
			continue
		}
		score := float64(r.Similarity)
		if score < opts.MinSimilarity {
			continue
		}
		cp := *m
		cp.Score = score
		memories = append(memories, &cp)
		if opts.Limit > 0 && len(memories) >= opts.Limit {
			break
		}
	}
	return memories, nil
}

// FindByCriteria scans the in-process records.
func (s *Store) FindByCriteria(ctx context.Context, c *storage.Criteria) ([]*storage.Memory, error) {
	opts := &storage.SearchOptions{
		BotID:              c.Scope.BotID,
		Tiers:              c.Tiers,
		Types:              c.Types,
		Tags:               c.Tags,
		IncludeSoftDeleted: c.IncludeSoftDeleted,
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var memories []*storage.Memory
	for _, m := range s.memories {
		if m.UserID != c.Scope.UserID || m.TenantID != c.Scope.TenantID {
			continue
		}
		if !storage.MatchesSearchFilters(m, opts) {
			continue
		}
		if !c.CreatedBefore.IsZero() && !m.CreatedAt.Before(c.CreatedBefore) {
			continue
		}
		if !c.CreatedAfter.IsZero() && !m.CreatedAt.After(c.CreatedAfter) {
			continue
		}
		cp := *m
		memories = append(memories, &cp)
	}

	sortByCreatedDesc(memories)
	return paginate(memories, c.Limit, c.Offset), nil
}

// GetForConsolidation returns non-deleted memories whose last sweep is older
// than the cutoff (or that have never been swept).
func (s *Store) GetForConsolidation(ctx context.Context, scope storage.Scope, sweptBefore time.Time, limit int) ([]*storage.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var memories []*storage.Memory
	for _, m := range s.memories {
		if m.UserID != scope.UserID || m.TenantID != scope.TenantID || m.Deleted {
			continue
		}
		if scope.BotID != "" && m.BotID != scope.BotID {
			continue
		}
		if m.LastDecayAt != nil && !m.LastDecayAt.Before(sweptBefore) {
			continue
		}
		cp := *m
		memories = append(memories, &cp)
	}

	sortByCreatedAsc(memories)
	return paginate(memories, limit, 0), nil
}

// CountByUser counts non-deleted memories for a user, optionally per tier.
func (s *Store) CountByUser(ctx context.Context, userID, tenantID string, tier *storage.Tier) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.memories {
		if m.UserID != userID || m.TenantID != tenantID || m.Deleted {
			continue
		}
		if tier != nil && m.Tier != *tier {
			continue
		}
		count++
	}
	return count, nil
}

// UpdateTier moves a memory to a new tier.
func (s *Store) UpdateTier(ctx context.Context, id int64, tier storage.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.Tier = tier
	m.UpdatedAt = time.Now()
	return nil
}

// UpdateDecay records a new decay score and the sweep watermark.
func (s *Store) UpdateDecay(ctx context.Context, id int64, decayScore float64, sweptAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.DecayScore = decayScore
	t := sweptAt
	m.LastDecayAt = &t
	m.UpdatedAt = time.Now()
	return nil
}

// UpdateAccess bumps access count and last-accessed timestamp.
func (s *Store) UpdateAccess(ctx context.Context, id int64, accessedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memories[id]
	if !ok {
		return storage.ErrNotFound
	}
	m.AccessCount++
	t := accessedAt
	m.LastAccessedAt = &t
	m.UpdatedAt = time.Now()
	return nil
}

// CleanupExpired soft-deletes memories whose tier TTL has elapsed.
func (s *Store) CleanupExpired(ctx context.Context, ttls map[storage.Tier]time.Duration, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, m := range s.memories {
		if m.Deleted {
			continue
		}
		ttl, ok := ttls[m.Tier]
		if !ok || ttl <= 0 {
			continue
		}
		if now.Sub(m.CreatedAt) > ttl {
			m.Deleted = true
			m.UpdatedAt = now
			count++
		}
	}
	return count, nil
}

// HealthCheck always succeeds for the embedded backend.
func (s *Store) HealthCheck(ctx context.Context) error {
	return nil
}

// Close releases nothing; the embedded backend has no external resources.
func (s *Store) Close() error {
	return nil
}

func sortByCreatedDesc(ms []*storage.Memory) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].CreatedAt.After(ms[j].CreatedAt) })
}

func sortByCreatedAsc(ms []*storage.Memory) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].CreatedAt.Before(ms[j].CreatedAt) })
}

func paginate(ms []*storage.Memory, limit, offset int) []*storage.Memory {
	if offset > 0 {
		if offset >= len(ms) {
			return nil
		}
		ms = ms[offset:]
	}
	if limit > 0 && len(ms) > limit {
		ms = ms[:limit]
	}
	return ms
}
