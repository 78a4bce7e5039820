// Package llm provides a model-backed implementation of the extraction
// interface, interchangeable with the pattern-based pipeline.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/intelliclone/memengine-go/pkg/extraction"
)

// Config configures the model-backed extractor.
type Config struct {
	// APIKey is the API key (required).
	APIKey string

	// Model is the chat model name. Defaults to gpt-4o-mini.
	Model string

	// BaseURL overrides the API base URL, for OpenAI-compatible endpoints.
	BaseURL string

	// Timeout bounds each extraction call. Defaults to 30s.
	Timeout time.Duration

	// CustomPrompt replaces the default system prompt when set.
	CustomPrompt string
}

// Extractor extracts candidate memories from conversation turns with a chat
// model instead of regex patterns. It implements extraction.Extractor.
type Extractor struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	prompt  string
}

// New creates a model-backed extractor.
func New(cfg *Config) (*Extractor, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm extractor: api key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Extractor{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		timeout: timeout,
		prompt:  cfg.CustomPrompt,
	}, nil
}

// response is the JSON schema the model is instructed to return.
type response struct {
	Candidates []struct {
		Content    string   `json:"content"`
		Type       string   `json:"type"`
		Confidence float64  `json:"confidence"`
		Tags       []string `json:"tags"`
	} `json:"candidates"`
	Insights []struct {
		Category   string  `json:"category"`
		Field      string  `json:"field"`
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"insights"`
}

// Extract runs one conversation turn through the model and parses the
// structured response. A turn the model finds nothing in yields an empty
// result, not an error.
func (e *Extractor) Extract(userMessage, assistantResponse string) (*extraction.Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	input := "user: " + userMessage
	if assistantResponse != "" {
		input += "\nassistant: " + assistantResponse
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: e.systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("llm extraction failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return &extraction.Result{}, nil
	}

	return parse(resp.Choices[0].Message.Content)
}

func (e *Extractor) systemPrompt() string {
	if e.prompt != "" {
		return e.prompt
	}
	return `You are a memory extraction engine for a personal assistant. From one
conversation turn, extract durable information about the user.

Return JSON only, in this shape:
{"candidates": [{"content": "...", "type": "fact|preference|goal|relationship|skill|event", "confidence": 0.0, "tags": []}],
 "insights": [{"category": "professional|preference|goal|challenge|relationship|style", "field": "...", "value": "...", "confidence": 0.0}]}

Rules:
- Candidates must be self-contained statements about the user ("Works at Visma", not "they work there").
- Preserve temporal references from the input.
- Confidence reflects how explicitly the user stated the information.
- If nothing durable was said, return {"candidates": [], "insights": []}.
- Preserve the input language.`
}

// parse decodes the model output, tolerating code fences around the JSON.
func parse(raw string) (*extraction.Result, error) {
	raw = strings.ReplaceAll(raw, "```json", "")
	raw = strings.ReplaceAll(raw, "```", "")
	raw = strings.TrimSpace(raw)

	var r response
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("llm extraction: invalid response: %w", err)
	}

	result := &extraction.Result{}
	for _, c := range r.Candidates {
		if strings.TrimSpace(c.Content) == "" {
			continue
		}
		result.Candidates = append(result.Candidates, extraction.Candidate{
			Content:    c.Content,
			Type:       c.Type,
			Source:     "inferred",
			Confidence: clamp(c.Confidence),
			Tags:       c.Tags,
		})
	}
	for _, i := range r.Insights {
		if strings.TrimSpace(i.Value) == "" {
			continue
		}
		result.Insights = append(result.Insights, extraction.Insight{
			Category:   extraction.InsightCategory(i.Category),
			Field:      i.Field,
			Value:      i.Value,
			Confidence: clamp(i.Confidence),
		})
	}
	return result, nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
