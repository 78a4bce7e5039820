package core

import (
	"go.uber.org/zap"

	"github.com/intelliclone/memengine-go/pkg/extraction"
	"github.com/intelliclone/memengine-go/pkg/persona"
	"github.com/intelliclone/memengine-go/pkg/storage"
)

// ServiceOption configures a MemoryService at construction time.
type ServiceOption func(*MemoryService)

// WithLogger sets the service logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *MemoryService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithExtractor replaces the default pattern-based extraction pipeline with
// another Extractor implementation, e.g. a model-backed one.
func WithExtractor(e extraction.Extractor) ServiceOption {
	return func(s *MemoryService) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithPersonaService attaches a persona service so conversational ingestion
// forwards insights to it. Without one, insights are dropped.
func WithPersonaService(p *persona.Service) ServiceOption {
	return func(s *MemoryService) {
		s.personas = p
	}
}

// RetrieveOption configures one Retrieve call.
type RetrieveOption func(*retrieveOptions)

type retrieveOptions struct {
	limit         int
	minSimilarity float64
	tiers         []storage.Tier
	types         []storage.MemoryType
	tags          []string
	excludeIDs    []int64
	botID         string
	touchAccess   bool
}

// WithLimit caps the number of results. The limit must be positive;
// Retrieve rejects zero or negative values as a validation error. Omit the
// option to use the configured default.
func WithLimit(limit int) RetrieveOption {
	return func(o *retrieveOptions) {
		o.limit = limit
	}
}

// WithMinSimilarity overrides the configured minimum similarity cutoff.
func WithMinSimilarity(min float64) RetrieveOption {
	return func(o *retrieveOptions) {
		o.minSimilarity = min
	}
}

// WithTiers restricts retrieval to the given tiers.
func WithTiers(tiers ...storage.Tier) RetrieveOption {
	return func(o *retrieveOptions) {
		o.tiers = tiers
	}
}

// WithTypes restricts retrieval to the given memory types.
func WithTypes(types ...storage.MemoryType) RetrieveOption {
	return func(o *retrieveOptions) {
		o.types = types
	}
}

// WithTags restricts retrieval to memories carrying any of the tags.
func WithTags(tags ...string) RetrieveOption {
	return func(o *retrieveOptions) {
		o.tags = tags
	}
}

// WithExcludeIDs removes specific memories from the candidate set, e.g.
// memories already injected earlier in the conversation.
func WithExcludeIDs(ids ...int64) RetrieveOption {
	return func(o *retrieveOptions) {
		o.excludeIDs = ids
	}
}

// WithBotScope narrows retrieval to a per-bot sub-scope.
func WithBotScope(botID string) RetrieveOption {
	return func(o *retrieveOptions) {
		o.botID = botID
	}
}

// WithoutAccessTracking disables the access-count bump for this retrieval,
// for diagnostic reads that should not reinforce memories.
func WithoutAccessTracking() RetrieveOption {
	return func(o *retrieveOptions) {
		o.touchAccess = false
	}
}
