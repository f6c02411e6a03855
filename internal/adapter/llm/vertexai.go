package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"intramind/internal/adapter/upstream"
)

// GenAIConfig configures a generator on the Gemini API or Vertex AI.
type GenAIConfig struct {
	APIKey      string
	Project     string
	Location    string
	VertexAI    bool
	Model       string
	Temperature float32
	MaxTokens   int
	Policy      upstream.Policy
}

type GenAIGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	policy      upstream.Policy
}

func NewGenAIGenerator(ctx context.Context, cfg GenAIConfig) (*GenAIGenerator, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	cc := genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if cfg.VertexAI {
		cc.Backend = genai.BackendVertexAI
		if cfg.Location == "" && strings.TrimSpace(cfg.APIKey) == "" {
			cfg.Location = "us-central1"
		}
	}
	if strings.TrimSpace(cfg.APIKey) != "" {
		cc.APIKey = cfg.APIKey
	}
	if strings.TrimSpace(cfg.Project) != "" {
		cc.Project = cfg.Project
	}
	if strings.TrimSpace(cfg.Location) != "" {
		cc.Location = cfg.Location
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GenAIGenerator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxTokens),
		policy:      cfg.Policy,
	}, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	temp := g.temperature
	cfg := genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: g.maxTokens,
	}

	var resp *genai.GenerateContentResponse
	err := g.policy.Do(ctx, "generate content", func(ctx context.Context) error {
		var err error
		resp, err = g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &cfg)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates returned")
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (g *GenAIGenerator) ModelName() string {
	return g.model
}
