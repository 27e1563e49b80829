package provider

import (
	"context"
	"time"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	ID() string
	Name() string
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	HealthCheck(ctx context.Context) error
}

// Generator produces text for a single prompt. The reasoning loop and the
// narrator depend on this instead of a concrete provider.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg SamplingConfig) (string, error)
}

// SamplingConfig controls one text-generation call.
type SamplingConfig struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"` // nil leaves the provider default
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p"`
	TopK        int      `json:"top_k"`
	Stop        []string `json:"stop,omitempty"`
}

// ChatRequest represents a request to an LLM provider.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	TopK        int       `json:"-"` // not part of the OpenAI wire format
	Stop        []string  `json:"stop,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse represents a response from an LLM provider.
type ChatResponse struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderConfig holds configuration for a provider instance.
type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Models   []string          `json:"models,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Timeout  time.Duration     `json:"timeout,omitempty"`
}

// requestFromSampling builds a single-turn chat request for prompt.
func requestFromSampling(prompt string, cfg SamplingConfig) *ChatRequest {
	return &ChatRequest{
		Model:       cfg.Model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		TopP:        cfg.TopP,
		TopK:        cfg.TopK,
		Stop:        cfg.Stop,
	}
}

// Float64 returns a pointer to v, for optional sampling values.
func Float64(v float64) *float64 { return &v }

// defaultModel returns the first configured model, or fallback.
func defaultModel(cfg ProviderConfig, fallback string) string {
	if len(cfg.Models) > 0 && cfg.Models[0] != "" {
		return cfg.Models[0]
	}
	return fallback
}
