package core

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/intelliclone/memengine-go/pkg/ranking"
	"github.com/intelliclone/memengine-go/pkg/scoring"
	"github.com/intelliclone/memengine-go/pkg/storage"
	"github.com/intelliclone/memengine-go/pkg/tier"
)

// Config configures the memory engine service.
type Config struct {
	// EmbeddingDimension is the required length of every embedding vector
	// passing through the engine. Must match the provider's output.
	EmbeddingDimension int

	// MinExtractionConfidence is the floor below which extracted
	// candidates are discarded before scoring.
	MinExtractionConfidence float64

	// MinStoreImportance is the importance floor below which scored
	// candidates from conversation ingestion are not persisted.
	MinStoreImportance float64

	// InitialTier is where newly stored memories start.
	InitialTier storage.Tier

	// Weights configures importance scoring; nil uses scoring defaults.
	Weights *scoring.Weights

	// Tier configures the consolidation state machine; nil uses tier
	// defaults.
	Tier *tier.Config

	// Ranking configures retrieval re-scoring; nil uses ranking defaults.
	Ranking *ranking.Config

	// SnowflakeNode identifies this process for ID generation, 0-1023.
	SnowflakeNode int64
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingDimension:      1536,
		MinExtractionConfidence: 0.6,
		MinStoreImportance:      0.3,
		InitialTier:             storage.TierWorking,
		SnowflakeNode:           1,
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive", ErrInvalidConfig)
	}
	if c.MinExtractionConfidence < 0 || c.MinExtractionConfidence > 1 {
		return fmt.Errorf("%w: extraction confidence floor must be in [0,1]", ErrInvalidConfig)
	}
	if c.MinStoreImportance < 0 || c.MinStoreImportance > 1 {
		return fmt.Errorf("%w: store importance floor must be in [0,1]", ErrInvalidConfig)
	}
	if c.SnowflakeNode < 0 || c.SnowflakeNode > 1023 {
		return fmt.Errorf("%w: snowflake node must be in [0,1023]", ErrInvalidConfig)
	}
	switch c.InitialTier {
	case storage.TierWorking, storage.TierShortTerm, storage.TierLongTerm:
	default:
		return fmt.Errorf("%w: invalid initial tier %q", ErrInvalidConfig, c.InitialTier)
	}
	return nil
}

// LoadConfigFromEnv builds a Config from environment variables, loading a
// .env file first when one is present. Unset variables keep their defaults.
//
// Recognized variables:
//
//	MEMENGINE_EMBEDDING_DIMENSION
//	MEMENGINE_MIN_EXTRACTION_CONFIDENCE
//	MEMENGINE_MIN_STORE_IMPORTANCE
//	MEMENGINE_INITIAL_TIER
//	MEMENGINE_SNOWFLAKE_NODE
func LoadConfigFromEnv() (*Config, error) {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if v := os.Getenv("MEMENGINE_EMBEDDING_DIMENSION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: MEMENGINE_EMBEDDING_DIMENSION: %v", ErrInvalidConfig, err)
		}
		cfg.EmbeddingDimension = n
	}
	if v := os.Getenv("MEMENGINE_MIN_EXTRACTION_CONFIDENCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: MEMENGINE_MIN_EXTRACTION_CONFIDENCE: %v", ErrInvalidConfig, err)
		}
		cfg.MinExtractionConfidence = f
	}
	if v := os.Getenv("MEMENGINE_MIN_STORE_IMPORTANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: MEMENGINE_MIN_STORE_IMPORTANCE: %v", ErrInvalidConfig, err)
		}
		cfg.MinStoreImportance = f
	}
	if v := os.Getenv("MEMENGINE_INITIAL_TIER"); v != "" {
		cfg.InitialTier = storage.Tier(v)
	}
	if v := os.Getenv("MEMENGINE_SNOWFLAKE_NODE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: MEMENGINE_SNOWFLAKE_NODE: %v", ErrInvalidConfig, err)
		}
		cfg.SnowflakeNode = n
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
