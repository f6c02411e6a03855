package llm

import (
	"context"
	"os"
	"strings"

	"intramind/config"
	"intramind/internal/adapter/upstream"
	"intramind/internal/domain"
	"intramind/internal/port"
)

// New builds the generator named by cfg.Provider.
func New(ctx context.Context, cfg config.GenerationConfig) (port.Generator, error) {
	policy := upstream.Policy{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Timeout:    cfg.Timeout,
		Limiter:    upstream.NewLimiter(cfg.RequestsPerSecond),
	}

	switch strings.ToLower(cfg.Provider) {
	case "openai", "groq", "":
		apiKey := os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, domain.NewConfigurationError("generation", "API key not found in environment variable %s", cfg.APIKeyEnv)
		}
		return NewOpenAIGenerator(OpenAIConfig{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Policy:      policy,
		})
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434/v1"
		}
		return NewOpenAIGenerator(OpenAIConfig{
			APIKey:      "ollama",
			BaseURL:     baseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Policy:      policy,
		})
	case "gemini", "vertexai", "google":
		return NewGenAIGenerator(ctx, GenAIConfig{
			APIKey:      os.Getenv(cfg.APIKeyEnv),
			Project:     cfg.Project,
			Location:    cfg.Location,
			VertexAI:    strings.ToLower(cfg.Provider) != "gemini",
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Policy:      policy,
		})
	default:
		return nil, domain.NewConfigurationError("generation", "unsupported provider %q", cfg.Provider)
	}
}
