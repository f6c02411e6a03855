package retriever

import (
	"context"
	"fmt"

	"intramind/internal/adapter/store"
	"intramind/internal/domain"
	"intramind/internal/port"
)

const DefaultTopK = 4

// SemanticRetriever embeds a question and searches the served index.
type SemanticRetriever struct {
	index       *store.Handle
	embedder    port.Embedder
	maxDistance float64
}

// NewSemanticRetriever creates a retriever. A positive maxDistance drops
// matches farther than it; zero keeps every match.
func NewSemanticRetriever(index *store.Handle, embedder port.Embedder, maxDistance float64) *SemanticRetriever {
	return &SemanticRetriever{
		index:       index,
		embedder:    embedder,
		maxDistance: maxDistance,
	}
}

// Retrieve returns up to topK chunks closest to question. An empty
// question is embedded like any other and yields low-relevance matches.
func (r *SemanticRetriever) Retrieve(ctx context.Context, question string, topK int) ([]domain.RetrievedChunk, error) {
	if r.index == nil || r.embedder == nil {
		return nil, domain.NewConfigurationError("retrieve", "semantic search not available: index or embedder not configured")
	}

	idx := r.index.Current()
	if idx == nil {
		return nil, domain.NewConfigurationError("retrieve", "no index loaded")
	}
	if idx.Len() == 0 {
		return nil, domain.NewConfigurationError("retrieve", "index %s is empty", idx.Manifest().BuildID)
	}
	m := idx.Manifest()
	if m.ModelID != r.embedder.ModelID() {
		return nil, &domain.ModelMismatchError{IndexModel: m.ModelID, QueryModel: r.embedder.ModelID()}
	}
	if dim := r.embedder.Dimension(); dim > 0 && dim != m.Dimension {
		return nil, &domain.ModelMismatchError{
			IndexModel: fmt.Sprintf("%s (dim %d)", m.ModelID, m.Dimension),
			QueryModel: fmt.Sprintf("%s (dim %d)", r.embedder.ModelID(), dim),
		}
	}

	if topK <= 0 {
		topK = DefaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embedding returned %d vectors for one query", len(embeddings))
	}

	results, err := idx.Search(embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	if r.maxDistance <= 0 {
		return results, nil
	}
	kept := results[:0]
	for _, res := range results {
		if res.Distance <= r.maxDistance {
			kept = append(kept, res)
		}
	}
	return kept, nil
}
