package embedding

import (
	"context"
	"os"
	"strings"

	"intramind/config"
	"intramind/internal/adapter/upstream"
	"intramind/internal/domain"
	"intramind/internal/port"
)

// New builds the embedder named by cfg.Provider.
func New(ctx context.Context, cfg config.EmbeddingConfig) (port.Embedder, error) {
	policy := upstream.Policy{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Timeout:    cfg.Timeout,
		Limiter:    upstream.NewLimiter(cfg.RequestsPerSecond),
	}

	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		apiKey := os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" && cfg.BaseURL == "" {
			return nil, domain.NewConfigurationError("embedding", "API key not found in environment variable %s", cfg.APIKeyEnv)
		}
		return NewOpenAIEmbedder(OpenAIConfig{
			APIKey:    apiKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			BatchSize: cfg.BatchSize,
			Policy:    policy,
		})
	case "ollama":
		return NewOllamaEmbedder(cfg.Model, cfg.BaseURL, policy)
	case "gemini", "vertexai", "google":
		return NewGenAIEmbedder(ctx, GenAIConfig{
			APIKey:    os.Getenv(cfg.APIKeyEnv),
			Project:   cfg.Project,
			Location:  cfg.Location,
			VertexAI:  strings.ToLower(cfg.Provider) != "gemini",
			Model:     cfg.Model,
			BatchSize: cfg.BatchSize,
			Policy:    policy,
		})
	case "hash":
		return NewHashEmbedder(cfg.Dimension), nil
	default:
		return nil, domain.NewConfigurationError("embedding", "unsupported provider %q", cfg.Provider)
	}
}
