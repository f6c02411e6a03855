package embedding

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"

	openai "github.com/sashabaranov/go-openai"

	"intramind/internal/adapter/upstream"
)

const defaultBatchSize = 100

// OpenAIConfig configures an embedder against any OpenAI-compatible API.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimension  int
	BatchSize  int
	Policy     upstream.Policy
	HTTPClient *http.Client
}

type OpenAIEmbedder struct {
	client    *openai.Client
	model     string
	dimension atomic.Int64
	request   int // dimensions sent upstream, 0 lets the model decide
	batchSize int
	policy    upstream.Policy
}

func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}

	e := &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		request:   cfg.Dimension,
		batchSize: cfg.BatchSize,
		policy:    cfg.Policy,
	}
	if e.batchSize <= 0 {
		e.batchSize = defaultBatchSize
	}

	dim := cfg.Dimension
	if dim == 0 {
		dim = knownDimension(cfg.Model)
	}
	e.dimension.Store(int64(dim))
	return e, nil
}

// NewOllamaEmbedder targets a local Ollama server's OpenAI-compatible API.
func NewOllamaEmbedder(model, baseURL string, policy upstream.Policy) (*OpenAIEmbedder, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	return NewOpenAIEmbedder(OpenAIConfig{
		APIKey:  "ollama",
		BaseURL: baseURL,
		Model:   model,
		Policy:  policy,
	})
}

// knownDimension returns the output size of well known models, or 0 when
// the size is learned from the first response.
func knownDimension(model string) int {
	switch model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "jina-embeddings-v3":
		return 1024
	case "jina-embeddings-v4":
		return 2048
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	}
	return 0
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
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

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp openai.EmbeddingResponse
	err := e.policy.Do(ctx, "openai embeddings", func(ctx context.Context) error {
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input:      texts,
			Model:      openai.EmbeddingModel(e.model),
			Dimensions: e.request,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) || vectors[d.Index] != nil {
			return nil, fmt.Errorf("unexpected embedding index %d", d.Index)
		}
		if err := e.checkDimension(len(d.Embedding)); err != nil {
			return nil, err
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) checkDimension(n int) error {
	if e.dimension.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if want := int(e.dimension.Load()); n != want {
		return fmt.Errorf("embedding dimension mismatch: model %s returned %d, expected %d", e.model, n, want)
	}
	return nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return int(e.dimension.Load())
}

// ModelID is the model name, suffixed with the requested dimension when
// one is sent upstream, since it changes the vector shape.
func (e *OpenAIEmbedder) ModelID() string {
	return ModelID(e.model, e.request)
}

// ModelID formats the id of an OpenAI-compatible model asked for
// dimensions outputs. Zero means the model's native size.
func ModelID(model string, dimensions int) string {
	if dimensions > 0 {
		return fmt.Sprintf("%s@%d", model, dimensions)
	}
	return model
}
