// Package openai provides the OpenAI implementation of embedder.Provider,
// built on the OpenAI Embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/intelliclone/memengine-go/pkg/embedder"
)

// Client is an OpenAI embedding client.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// Config is the configuration for the OpenAI embedder.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// Model is the embedding model name. Only text-embedding-ada-002 is
	// supported by the underlying client; it is also the default.
	Model string

	// BaseURL overrides the API base URL (optional).
	BaseURL string

	// Dimensions is the vector dimension. Defaults to 1536.
	Dimensions int
}

// New creates a new OpenAI embedding client.
func New(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai embedder: api key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	// The client models embeddings as a closed enum; reject unknown names
	// rather than silently substituting.
	if cfg.Model != "" && cfg.Model != "text-embedding-ada-002" {
		return nil, fmt.Errorf("openai embedder: unsupported model %q", cfg.Model)
	}
	model := openai.AdaEmbeddingV2

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1536 // ada-002 output dimension
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed converts a single text to a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, *embedder.Report, error) {
	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil, errors.New("embedding generation failed: no data returned")
	}

	report := &embedder.Report{
		Tokens:   resp.Usage.PromptTokens,
		Duration: time.Since(start),
	}
	return resp.Data[0].Embedding, report, nil
}

// EmbedBatch converts multiple texts to vectors in one request, preserving
// input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, *embedder.Report, error) {
	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, nil, fmt.Errorf("embedding generation failed: got %d results, expected %d",
			len(resp.Data), len(texts))
	}

	embeddings := make([][]float32, len(texts))
	for i, data := range resp.Data {
		embeddings[i] = data.Embedding
	}

	report := &embedder.Report{
		Tokens:   resp.Usage.PromptTokens,
		Duration: time.Since(start),
	}
	return embeddings, report, nil
}

// Similarity computes cosine similarity between two vectors.
func (c *Client) Similarity(a, b []float32) float64 {
	return embedder.CosineSimilarity(a, b)
}

// Dimensions returns the vector dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// HealthCheck verifies the API is reachable by embedding a short probe.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, _, err := c.Embed(ctx, "ping")
	return err
}

// Close releases nothing; the underlying HTTP client needs no teardown.
func (c *Client) Close() error {
	return nil
}
