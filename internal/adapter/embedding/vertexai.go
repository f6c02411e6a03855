package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"google.golang.org/genai"

	"intramind/internal/adapter/upstream"
)

// GenAIConfig configures an embedder on the Gemini API or Vertex AI.
type GenAIConfig struct {
	APIKey    string
	Project   string
	Location  string
	VertexAI  bool
	Model     string
	BatchSize int
	Policy    upstream.Policy
}

type GenAIEmbedder struct {
	client    *genai.Client
	model     string
	dimension atomic.Int64
	batchSize int
	policy    upstream.Policy
}

// NewGenAIEmbedder creates an embedder backed by google.golang.org/genai.
func NewGenAIEmbedder(ctx context.Context, cfg GenAIConfig) (*GenAIEmbedder, error) {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-005"
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

	e := &GenAIEmbedder{
		client:    client,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		policy:    cfg.Policy,
	}
	if e.batchSize <= 0 {
		e.batchSize = defaultBatchSize
	}
	return e, nil
}

func (e *GenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		vectors, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", i, end, err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (e *GenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}

	var res *genai.EmbedContentResponse
	err := e.policy.Do(ctx, "genai embeddings", func(ctx context.Context) error {
		var err error
		res, err = e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
			TaskType: "RETRIEVAL_DOCUMENT",
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if res == nil || len(res.Embeddings) != len(texts) {
		got := 0
		if res != nil {
			got = len(res.Embeddings)
		}
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), got)
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range res.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("missing embedding %d", i)
		}
		n := int64(len(emb.Values))
		if !e.dimension.CompareAndSwap(0, n) && e.dimension.Load() != n {
			return nil, fmt.Errorf("embedding dimension mismatch: model %s returned %d, expected %d", e.model, n, e.dimension.Load())
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (e *GenAIEmbedder) Dimension() int {
	return int(e.dimension.Load())
}

func (e *GenAIEmbedder) ModelID() string {
	return e.model
}
