package port

import "intramind/internal/domain"

type Chunker interface {
	Chunk(docs []domain.SourceDocument) ([]domain.Chunk, error)
}
