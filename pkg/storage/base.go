// Package storage defines the persistence interface the memory engine
// depends on, along with the stored memory record type.
//
// The engine never talks to a database directly; every backend (SQLite,
// PostgreSQL, chromem) implements the Store interface. Vector search,
// lifecycle updates (tier, decay, access), soft deletion, and consolidation
// scans are all expressed here so the engine stays portable across backends.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/intelliclone/memengine-go/pkg/scoring"
)

// Tier is the storage tier a memory currently lives in. Tiers represent
// expected lifespan and storage cost.
type Tier string

const (
	// TierWorking holds fresh, unconsolidated memories.
	TierWorking Tier = "working"

	// TierShortTerm holds memories that survived the working tier.
	TierShortTerm Tier = "short_term"

	// TierLongTerm holds consolidated, durable memories.
	TierLongTerm Tier = "long_term"

	// TierEpisodic is the archival branch for aged-out memories.
	TierEpisodic Tier = "episodic"
)

// ActiveTiers lists the promotion ladder from bottom to top. Episodic is an
// archival branch, not part of the ladder.
var ActiveTiers = []Tier{TierWorking, TierShortTerm, TierLongTerm}

// MemoryType is the semantic type of a memory.
type MemoryType string

const (
	TypeFact         MemoryType = "fact"
	TypePreference   MemoryType = "preference"
	TypeEvent        MemoryType = "event"
	TypeRelationship MemoryType = "relationship"
	TypeSkill        MemoryType = "skill"
	TypeGoal         MemoryType = "goal"
	TypeContext      MemoryType = "context"
	TypeFeedback     MemoryType = "feedback"
)

// Source describes how a memory was acquired.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceInferred Source = "inferred"
	SourceImported Source = "imported"
	SourceSystem   Source = "system"
)

// Scope identifies the owner of a set of memories: user, tenant, and an
// optional per-bot sub-scope. All engine operations are independent per
// scope key.
type Scope struct {
	// UserID identifies the owning user (required).
	UserID string `json:"user_id"`

	// TenantID identifies the owning tenant (required).
	TenantID string `json:"tenant_id"`

	// BotID is the optional per-bot sub-scope.
	BotID string `json:"bot_id,omitempty"`
}

// Memory is one stored unit of remembered information about a user.
type Memory struct {
	// ID is the unique identifier of the memory.
	ID int64 `json:"id"`

	// UserID, TenantID, and BotID scope the memory.
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	BotID    string `json:"bot_id,omitempty"`

	// Type is the semantic type of the memory.
	Type MemoryType `json:"type"`

	// Content is the text content of the memory.
	Content string `json:"content"`

	// Source describes how the memory was acquired.
	Source Source `json:"source"`

	// Tier is the storage tier the memory currently lives in.
	Tier Tier `json:"tier"`

	// Importance is the normalized importance score (0.0-1.0).
	Importance float64 `json:"importance"`

	// Breakdown is the per-group importance contribution, kept for
	// explainability and usage-based re-scoring.
	Breakdown scoring.Breakdown `json:"breakdown"`

	// DecayScore is the current time-decayed retention value (0.0-1.0).
	DecayScore float64 `json:"decay_score"`

	// Embedding is the vector representation for similarity search. Its
	// length must equal the configured embedding dimension exactly.
	Embedding []float32 `json:"embedding,omitempty"`

	// CreatedAt and UpdatedAt are maintained by the engine.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// LastAccessedAt is when the memory was last retrieved (nil if never).
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// LastDecayAt is the watermark of the last consolidation sweep that
	// charged decay against this memory. Sweeps within the same window
	// skip records already charged, making sweeps idempotent.
	LastDecayAt *time.Time `json:"last_decay_at,omitempty"`

	// AccessCount is the number of times the memory has been retrieved.
	AccessCount int `json:"access_count"`

	// Deleted marks the memory as soft-deleted: excluded from retrieval
	// but retained for audit until hard-deleted.
	Deleted bool `json:"deleted"`

	// Tags are free-form labels.
	Tags []string `json:"tags,omitempty"`

	// ConversationID and MessageID link back to the originating turn.
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`

	// Score is the transient relevance of this record for the query that
	// returned it, never persisted. VectorSearch sets it to the cosine
	// similarity (0.0-1.0); ranking replaces it with the combined rank,
	// which can exceed 1 once recency and importance boosts are added.
	Score float64 `json:"score,omitempty"`
}

// SearchOptions controls VectorSearch behavior.
type SearchOptions struct {
	// BotID narrows the search to a per-bot sub-scope.
	BotID string

	// Limit caps the number of candidates returned.
	Limit int

	// MinSimilarity drops candidates below this cosine similarity.
	MinSimilarity float64

	// Tiers, Types, and Tags filter candidates before ranking. Empty
	// slices mean "no filter".
	Tiers []Tier
	Types []MemoryType
	Tags  []string

	// ExcludeIDs removes specific memories from the candidate set.
	ExcludeIDs []int64

	// IncludeSoftDeleted includes soft-deleted records (audit paths only).
	IncludeSoftDeleted bool
}

// Criteria filters FindByCriteria lookups.
type Criteria struct {
	Scope Scope

	Tiers []Tier
	Types []MemoryType
	Tags  []string

	// CreatedBefore / CreatedAfter bound creation time when non-zero.
	CreatedBefore time.Time
	CreatedAfter  time.Time

	// IncludeSoftDeleted includes soft-deleted records.
	IncludeSoftDeleted bool

	Limit  int
	Offset int
}

// Store is the persistence interface the memory engine depends on.
//
// Implementations must scope every operation by user and tenant, and must
// treat soft-deleted memories as invisible to VectorSearch unless
// IncludeSoftDeleted is set.
type Store interface {
	// Save persists a new memory.
	Save(ctx context.Context, m *Memory) error

	// SaveBatch persists several memories. Implementations should insert
	// what they can; the first error is returned after the batch attempt.
	SaveBatch(ctx context.Context, ms []*Memory) error

	// Get retrieves a memory by ID within a scope.
	Get(ctx context.Context, id int64, scope Scope) (*Memory, error)

	// Update rewrites a memory's mutable fields (content, embedding,
	// importance, breakdown, tags).
	Update(ctx context.Context, m *Memory) error

	// SoftDelete marks a memory deleted without removing it.
	SoftDelete(ctx context.Context, id int64, scope Scope) error

	// HardDelete permanently removes a memory.
	HardDelete(ctx context.Context, id int64, scope Scope) error

	// DeleteBatch permanently removes several memories.
	DeleteBatch(ctx context.Context, ids []int64, scope Scope) error

	// VectorSearch returns nearest-neighbor candidates for the query
	// vector within a (user, tenant) scope, sorted by similarity
	// descending, with Score populated.
	VectorSearch(ctx context.Context, query []float32, userID, tenantID string, opts *SearchOptions) ([]*Memory, error)

	// FindByCriteria returns memories matching structured criteria.
	FindByCriteria(ctx context.Context, c *Criteria) ([]*Memory, error)

	// GetForConsolidation returns a batch of memories due for
	// re-evaluation: not soft-deleted, last swept before the cutoff.
	GetForConsolidation(ctx context.Context, scope Scope, sweptBefore time.Time, limit int) ([]*Memory, error)

	// CountByUser counts non-deleted memories for a user, optionally per
	// tier (nil counts all tiers).
	CountByUser(ctx context.Context, userID, tenantID string, tier *Tier) (int, error)

	// UpdateTier moves a memory to a new tier.
	UpdateTier(ctx context.Context, id int64, tier Tier) error

	// UpdateDecay records a new decay score and the sweep watermark.
	UpdateDecay(ctx context.Context, id int64, decayScore float64, sweptAt time.Time) error

	// UpdateAccess bumps access count and last-accessed timestamp.
	UpdateAccess(ctx context.Context, id int64, accessedAt time.Time) error

	// CleanupExpired soft-deletes memories whose tier TTL has elapsed.
	// ttls maps tier to its time-to-live; tiers absent from the map are
	// unbounded. Returns the number of memories cleaned up.
	CleanupExpired(ctx context.Context, ttls map[Tier]time.Duration, now time.Time) (int, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ErrNotFound is the shared not-found sentinel returned by Get across all
// backends.
var ErrNotFound = errors.New("storage: memory not found")
