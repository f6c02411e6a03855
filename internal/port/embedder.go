package port

import "context"

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	// Failures worth retrying are wrapped as domain.TransientError.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelID identifies the embedding model. An index built with one
	// model id must only be queried with vectors from the same id.
	ModelID() string
}
