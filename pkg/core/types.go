package core

import (
	"strings"

	"github.com/intelliclone/memengine-go/pkg/ranking"
	"github.com/intelliclone/memengine-go/pkg/scoring"
	"github.com/intelliclone/memengine-go/pkg/storage"
)

// StoreRequest describes one memory to store.
type StoreRequest struct {
	// Scope identifies the owner (user and tenant required).
	Scope storage.Scope

	// Content is the memory text (required).
	Content string

	// Type is the semantic memory type. Defaults to fact.
	Type storage.MemoryType

	// Source describes acquisition. Defaults to explicit.
	Source storage.Source

	// Tier overrides the initial tier when set.
	Tier storage.Tier

	// Embedding is an optional precomputed vector; when nil the engine
	// embeds Content itself.
	Embedding []float32

	// Importance is an optional precomputed score in [0,1]; when nil the
	// engine scores Content itself.
	Importance *float64

	// Breakdown is the per-group contribution behind a precomputed
	// Importance, persisted with the record for explainability and later
	// usage-based re-scoring. Ignored when Importance is nil.
	Breakdown scoring.Breakdown

	// Tags are free-form labels.
	Tags []string

	// ConversationID and MessageID link back to the originating turn.
	ConversationID string
	MessageID      string
}

// RetrievalResult is the ranked context bundle Retrieve returns.
type RetrievalResult struct {
	// Memories are the final ranked records, best first.
	Memories []*storage.Memory `json:"memories"`

	// Ranked carries the per-record score components for callers that
	// want explainability.
	Ranked []*ranking.Ranked `json:"-"`

	// ContextBlock is a human-readable rendering of the memories, ready
	// for prompt injection.
	ContextBlock string `json:"context_block"`
}

// memoryTypeOf maps an extraction candidate type name onto the stored
// memory type, defaulting to fact for anything unrecognized.
func memoryTypeOf(name string) storage.MemoryType {
	switch storage.MemoryType(name) {
	case storage.TypeFact, storage.TypePreference, storage.TypeEvent,
		storage.TypeRelationship, storage.TypeSkill, storage.TypeGoal,
		storage.TypeContext, storage.TypeFeedback:
		return storage.MemoryType(name)
	default:
		return storage.TypeFact
	}
}

func sourceOf(name string) storage.Source {
	switch storage.Source(name) {
	case storage.SourceExplicit, storage.SourceInferred,
		storage.SourceImported, storage.SourceSystem:
		return storage.Source(name)
	default:
		return storage.SourceInferred
	}
}

// renderContextBlock formats ranked memories as a plain-text block, one
// bullet per memory, typed and ordered best first.
func renderContextBlock(memories []*storage.Memory) string {
	if len(memories) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Relevant memories about this user:\n")
	for _, m := range memories {
		sb.WriteString("- [")
		sb.WriteString(string(m.Type))
		sb.WriteString("] ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
