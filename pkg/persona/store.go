package persona

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no persona exists for the scope.
	ErrNotFound = errors.New("persona: not found")

	// ErrVersionConflict is returned when a save races with another
	// writer; the caller should re-read and re-apply.
	ErrVersionConflict = errors.New("persona: version conflict")
)

// Store persists persona aggregates.
//
// Save enforces optimistic concurrency: the persona's Version must equal the
// stored version, and a successful save increments it. This serializes
// concurrent updates for the same user without locks across users.
type Store interface {
	Get(ctx context.Context, userID, tenantID, botID string) (*UserPersona, error)
	Save(ctx context.Context, p *UserPersona) error
}

// MemoryStore is an in-process Store, suitable for tests and single-node
// deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	personas map[string]*UserPersona
}

// NewMemoryStore creates an empty in-process persona store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{personas: make(map[string]*UserPersona)}
}

func storeKey(userID, tenantID, botID string) string {
	return tenantID + "\x00" + userID + "\x00" + botID
}

// Get returns a copy of the stored persona, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, userID, tenantID, botID string) (*UserPersona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.personas[storeKey(userID, tenantID, botID)]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

// Save stores the persona if its version matches the stored one, then
// increments the version. A first save requires Version 0.
func (s *MemoryStore) Save(ctx context.Context, p *UserPersona) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey(p.UserID, p.TenantID, p.BotID)
	current, exists := s.personas[key]
	if exists && current.Version != p.Version {
		return ErrVersionConflict
	}
	if !exists && p.Version != 0 {
		return ErrVersionConflict
	}

	stored := p.Clone()
	stored.Version++
	stored.UpdatedAt = time.Now()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.personas[key] = stored

	p.Version = stored.Version
	p.ID = stored.ID
	p.UpdatedAt = stored.UpdatedAt
	return nil
}
