package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface on top of the Gemini API.
type GeminiProvider struct {
	config ProviderConfig
	client *genai.Client
	logger *zap.Logger
}

// NewGeminiProvider creates a Gemini provider. Endpoint, when set, overrides
// the API base URL.
func NewGeminiProvider(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (*GeminiProvider, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GeminiProvider{config: cfg, client: client, logger: logger}, nil
}

func (p *GeminiProvider) ID() string   { return p.config.ID }
func (p *GeminiProvider) Name() string { return p.config.Name }

// Chat sends a non-streaming generate-content request.
func (p *GeminiProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = defaultModel(p.config, "gemini-1.5-flash")
	}
	cfg, contents := p.convertRequest(req)
	if len(contents) == 0 {
		return nil, fmt.Errorf("no contents")
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai generate: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from provider")
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	out := &ChatResponse{
		ID:           resp.ResponseID,
		Model:        model,
		Content:      sb.String(),
		FinishReason: string(cand.FinishReason),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (p *GeminiProvider) convertRequest(req *ChatRequest) (*genai.GenerateContentConfig, []*genai.Content) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(req.MaxTokens),
		StopSequences:   req.Stop,
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.TopK > 0 {
		cfg.TopK = genai.Ptr(float32(req.TopK))
	}

	var (
		system   []*genai.Part
		contents []*genai.Content
	)
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, genai.NewPartFromText(m.Content))
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}
	return cfg, contents
}

// HealthCheck verifies the configured model is visible to the API key.
func (p *GeminiProvider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Models.Get(ctx, defaultModel(p.config, "gemini-1.5-flash"), nil)
	return err
}
