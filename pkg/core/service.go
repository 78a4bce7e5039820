package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/intelliclone/memengine-go/pkg/embedder"
	"github.com/intelliclone/memengine-go/pkg/extraction"
	"github.com/intelliclone/memengine-go/pkg/persona"
	"github.com/intelliclone/memengine-go/pkg/ranking"
	"github.com/intelliclone/memengine-go/pkg/scoring"
	"github.com/intelliclone/memengine-go/pkg/storage"
	"github.com/intelliclone/memengine-go/pkg/tier"
)

// overfetchFactor is how many candidates the vector search returns per
// requested result, so ranking and diversity have room to work.
const overfetchFactor = 3

// MemoryService orchestrates the memory engine: extraction, scoring,
// storage, tiering, retrieval, and persona forwarding.
//
// Construct one explicitly with NewMemoryService and pass it where needed;
// there is no package-level singleton.
type MemoryService struct {
	cfg       *Config
	store     storage.Store
	provider  embedder.Provider
	extractor extraction.Extractor
	scorer    *scoring.Scorer
	tiers     *tier.Manager
	ranker    *ranking.Ranker
	rankCfg   *ranking.Config
	personas  *persona.Service
	node      *snowflake.Node
	logger    *zap.Logger
}

// NewMemoryService creates the engine service.
//
// A nil config uses DefaultConfig. The embedding provider's dimension must
// match the configured embedding dimension.
func NewMemoryService(cfg *Config, store storage.Store, provider embedder.Provider, opts ...ServiceOption) (*MemoryService, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: storage is required", ErrInvalidConfig)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", ErrInvalidConfig)
	}
	if provider.Dimensions() != cfg.EmbeddingDimension {
		return nil, fmt.Errorf("%w: provider outputs %d dimensions, engine configured for %d",
			ErrDimensionMismatch, provider.Dimensions(), cfg.EmbeddingDimension)
	}

	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	rankCfg := cfg.Ranking
	if rankCfg == nil {
		rankCfg = ranking.DefaultConfig()
	}

	s := &MemoryService{
		cfg:       cfg,
		store:     store,
		provider:  provider,
		extractor: extraction.NewPipeline(cfg.MinExtractionConfidence),
		scorer:    scoring.NewScorer(cfg.Weights),
		tiers:     tier.NewManager(cfg.Tier, nil),
		ranker:    ranking.NewRanker(rankCfg),
		rankCfg:   rankCfg,
		node:      node,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	// Re-create the tier manager so it shares the configured logger.
	s.tiers = tier.NewManager(cfg.Tier, s.logger)
	return s, nil
}

// Store validates, scores, embeds, and persists one memory.
//
// Content must be non-empty and a precomputed embedding must match the
// configured dimension; both are validation errors, never retried. When no
// importance is provided the scorer computes one from the content itself.
func (s *MemoryService) Store(ctx context.Context, req *StoreRequest) (*storage.Memory, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, NewEngineError("Store", ErrEmptyContent)
	}
	if req.Scope.UserID == "" || req.Scope.TenantID == "" {
		return nil, NewEngineError("Store", fmt.Errorf("%w: user and tenant are required", ErrInvalidConfig))
	}
	if req.Embedding != nil && len(req.Embedding) != s.cfg.EmbeddingDimension {
		return nil, NewEngineError("Store", fmt.Errorf("%w: got %d, want %d",
			ErrDimensionMismatch, len(req.Embedding), s.cfg.EmbeddingDimension))
	}

	embedding := req.Embedding
	if embedding == nil {
		vec, _, err := s.provider.Embed(ctx, req.Content)
		if err != nil {
			return nil, NewEngineError("Store", fmt.Errorf("%w: %v", ErrEmbeddingFailed, err))
		}
		embedding = vec
	}

	memType := req.Type
	if memType == "" {
		memType = storage.TypeFact
	}
	source := req.Source
	if source == "" {
		source = storage.SourceExplicit
	}
	initialTier := req.Tier
	if initialTier == "" {
		initialTier = s.cfg.InitialTier
	}

	now := time.Now()
	mem := &storage.Memory{
		ID:             s.node.Generate().Int64(),
		UserID:         req.Scope.UserID,
		TenantID:       req.Scope.TenantID,
		BotID:          req.Scope.BotID,
		Type:           memType,
		Content:        req.Content,
		Source:         source,
		Tier:           initialTier,
		DecayScore:     1.0,
		Embedding:      embedding,
		CreatedAt:      now,
		UpdatedAt:      now,
		Tags:           req.Tags,
		ConversationID: req.ConversationID,
		MessageID:      req.MessageID,
	}

	if req.Importance != nil {
		mem.Importance = *req.Importance
		mem.Breakdown = req.Breakdown
	} else {
		factors := s.scorer.ExtractFactors(req.Content, string(memType), string(source), 0)
		score := s.scorer.Calculate(factors)
		mem.Importance = score.Score
		mem.Breakdown = score.Breakdown
	}

	if err := s.store.Save(ctx, mem); err != nil {
		return nil, NewEngineError("Store", err)
	}

	s.logger.Debug("memory stored",
		zap.Int64("id", mem.ID),
		zap.String("user", mem.UserID),
		zap.String("type", string(mem.Type)),
		zap.Float64("importance", mem.Importance),
	)
	return mem, nil
}

// Retrieve embeds the query, runs a scoped similarity search, re-ranks the
// candidates, and returns the final bundle with a rendered context block.
//
// Accessed memories get their access count bumped best-effort; a failed
// bump never fails the retrieval. A retrieval racing a concurrent store may
// miss the just-stored memory.
func (s *MemoryService) Retrieve(ctx context.Context, query string, scope storage.Scope, opts ...RetrieveOption) (*RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, NewEngineError("Retrieve", ErrEmptyContent)
	}

	o := &retrieveOptions{
		limit:         s.rankCfg.DefaultLimit,
		minSimilarity: s.rankCfg.MinSimilarity,
		botID:         scope.BotID,
		touchAccess:   true,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.limit <= 0 {
		return nil, NewEngineError("Retrieve", ranking.ErrInvalidLimit)
	}

	vec, _, err := s.provider.Embed(ctx, query)
	if err != nil {
		return nil, NewEngineError("Retrieve", fmt.Errorf("%w: %v", ErrEmbeddingFailed, err))
	}

	candidates, err := s.store.VectorSearch(ctx, vec, scope.UserID, scope.TenantID, &storage.SearchOptions{
		BotID:         o.botID,
		Limit:         o.limit * overfetchFactor,
		MinSimilarity: o.minSimilarity,
		Tiers:         o.tiers,
		Types:         o.types,
		Tags:          o.tags,
		ExcludeIDs:    o.excludeIDs,
	})
	if err != nil {
		return nil, NewEngineError("Retrieve", err)
	}

	ranked, err := s.ranker.Rank(candidates, time.Now(), o.limit)
	if err != nil {
		return nil, NewEngineError("Retrieve", err)
	}
	memories := ranking.Memories(ranked)

	if o.touchAccess {
		now := time.Now()
		for _, m := range memories {
			if err := s.store.UpdateAccess(ctx, m.ID, now); err != nil {
				s.logger.Warn("access bump failed", zap.Int64("id", m.ID), zap.Error(err))
			}
		}
	}

	return &RetrievalResult{
		Memories:     memories,
		Ranked:       ranked,
		ContextBlock: renderContextBlock(memories),
	}, nil
}

// ExtractFromConversation runs the extraction pipeline over one turn,
// scores and stores every accepted candidate, and forwards insights to the
// persona service when one is attached.
//
// Candidate failures are isolated: one candidate failing to store is logged
// and skipped, the rest proceed. Persona updates are best-effort and never
// fail the call.
func (s *MemoryService) ExtractFromConversation(ctx context.Context, userMessage, assistantResponse string, scope storage.Scope) ([]*storage.Memory, error) {
	result, err := s.extractor.Extract(userMessage, assistantResponse)
	if err != nil {
		return nil, NewEngineError("ExtractFromConversation", err)
	}

	stored := make([]*storage.Memory, 0, len(result.Candidates))
	for _, cand := range result.Candidates {
		if cand.Confidence < s.cfg.MinExtractionConfidence {
			continue
		}

		factors := s.scorer.ExtractFactors(cand.Content, cand.Type, cand.Source, 0)
		score := s.scorer.Calculate(factors)
		if score.Score < s.cfg.MinStoreImportance {
			continue
		}

		importance := score.Score
		mem, err := s.Store(ctx, &StoreRequest{
			Scope:      scope,
			Content:    cand.Content,
			Type:       memoryTypeOf(cand.Type),
			Source:     sourceOf(cand.Source),
			Importance: &importance,
			Breakdown:  score.Breakdown,
			Tags:       cand.Tags,
		})
		if err != nil {
			s.logger.Warn("candidate store failed",
				zap.String("content", cand.Content), zap.Error(err))
			continue
		}
		stored = append(stored, mem)
	}

	if s.personas != nil && len(result.Insights) > 0 {
		if _, err := s.personas.UpdateFromInsights(ctx, scope.UserID, scope.TenantID, scope.BotID, result.Insights); err != nil {
			s.logger.Warn("persona update failed",
				zap.String("user", scope.UserID), zap.Error(err))
		}
	}

	return stored, nil
}

// Consolidate runs one tier-manager sweep over the scope's memories that
// are due for re-evaluation, then expires memories past their tier TTL.
// Returns the number of records changed.
func (s *MemoryService) Consolidate(ctx context.Context, scope storage.Scope) (int, error) {
	sweep, err := s.tiers.Sweep(ctx, s.store, scope, time.Now())
	if err != nil {
		return 0, NewEngineError("Consolidate", err)
	}

	cleaned, err := s.store.CleanupExpired(ctx, s.tiers.TTLs(), time.Now())
	if err != nil {
		return sweep.Changed(), NewEngineError("Consolidate", err)
	}

	return sweep.Changed() + cleaned, nil
}

// Reinforce bumps a memory's access stats and restores part of its decay,
// for callers that used a memory outside Retrieve.
func (s *MemoryService) Reinforce(ctx context.Context, id int64, scope storage.Scope) error {
	mem, err := s.store.Get(ctx, id, scope)
	if err != nil {
		return NewEngineError("Reinforce", err)
	}

	now := time.Now()
	if err := s.store.UpdateAccess(ctx, id, now); err != nil {
		return NewEngineError("Reinforce", err)
	}
	if err := s.store.UpdateDecay(ctx, id, s.tiers.Reinforce(mem.DecayScore), now); err != nil {
		return NewEngineError("Reinforce", err)
	}
	return nil
}

// HealthCheck verifies both collaborators are reachable.
func (s *MemoryService) HealthCheck(ctx context.Context) error {
	if err := s.store.HealthCheck(ctx); err != nil {
		return NewEngineError("HealthCheck", err)
	}
	if err := s.provider.HealthCheck(ctx); err != nil {
		return NewEngineError("HealthCheck", err)
	}
	return nil
}

// Close releases the storage and embedding collaborators.
func (s *MemoryService) Close() error {
	if err := s.store.Close(); err != nil {
		return NewEngineError("Close", err)
	}
	return s.provider.Close()
}
