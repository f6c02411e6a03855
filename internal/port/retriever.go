package port

import (
	"context"

	"intramind/internal/domain"
)

// Retriever finds the chunks closest to a normalized question.
type Retriever interface {
	// Retrieve returns up to topK chunks ordered by ascending distance.
	Retrieve(ctx context.Context, question string, topK int) ([]domain.RetrievedChunk, error)
}
