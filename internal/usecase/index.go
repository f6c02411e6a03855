package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"intramind/internal/adapter/store"
	"intramind/internal/domain"
	"intramind/internal/port"
)

const DefaultEmbedBatchSize = 64

// Stage names reported to a ProgressFunc.
const (
	StageEmbed = "embed"
)

// ProgressFunc is called after each embedding batch.
type ProgressFunc func(stage string, done, total int)

// IndexSettings configure one index build.
type IndexSettings struct {
	Metric       store.Metric
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// IndexUseCase builds and persists a chunk index from a staged corpus.
type IndexUseCase struct {
	loader   port.DocumentLoader
	chunker  port.Chunker
	embedder port.Embedder
	settings IndexSettings
	progress ProgressFunc
	log      zerolog.Logger
}

// NewIndexUseCase creates a new index use case.
func NewIndexUseCase(
	loader port.DocumentLoader,
	chunker port.Chunker,
	embedder port.Embedder,
	settings IndexSettings,
	log zerolog.Logger,
) *IndexUseCase {
	if settings.BatchSize <= 0 {
		settings.BatchSize = DefaultEmbedBatchSize
	}
	return &IndexUseCase{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		settings: settings,
		log:      log,
	}
}

// OnProgress registers fn to receive embedding progress.
func (u *IndexUseCase) OnProgress(fn ProgressFunc) {
	u.progress = fn
}

// IndexResult contains the results of an indexing operation.
type IndexResult struct {
	Documents int
	Chunks    int
	Manifest  domain.Manifest
	Duration  time.Duration
}

// Index loads every described document under dataDir, chunks and embeds it,
// and atomically writes the index to outPath. An empty corpus is a
// configuration error and leaves any existing index untouched.
func (u *IndexUseCase) Index(ctx context.Context, dataDir, metadataPath, outPath string) (*IndexResult, error) {
	start := time.Now()

	docs, err := u.loader.Load(dataDir, metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, domain.NewConfigurationError("index", "no documents loaded from %s", dataDir)
	}
	u.log.Info().Int("documents", len(docs)).Str("data_dir", dataDir).Msg("documents loaded")

	chunks, err := u.chunker.Chunk(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk documents: %w", err)
	}
	if len(chunks) == 0 {
		return nil, domain.NewConfigurationError("index", "no chunks created from %d documents", len(docs))
	}
	u.log.Info().Int("chunks", len(chunks)).Msg("documents chunked")

	builder, err := store.NewBuilder(u.embedder.ModelID(), u.embedder.Dimension(), u.settings.Metric)
	if err != nil {
		return nil, err
	}
	builder.WithChunking(u.settings.ChunkSize, u.settings.ChunkOverlap)

	if err := u.embedChunks(ctx, builder, chunks); err != nil {
		return nil, err
	}

	idx := builder.Build()
	if err := store.Save(outPath, idx); err != nil {
		return nil, fmt.Errorf("failed to save index: %w", err)
	}

	result := &IndexResult{
		Documents: len(docs),
		Chunks:    idx.Len(),
		Manifest:  idx.Manifest(),
		Duration:  time.Since(start),
	}
	u.log.Info().
		Str("build_id", result.Manifest.BuildID).
		Str("path", outPath).
		Int("chunks", result.Chunks).
		Dur("duration", result.Duration).
		Msg("index saved")

	return result, nil
}

func (u *IndexUseCase) embedChunks(ctx context.Context, builder *store.Builder, chunks []domain.Chunk) error {
	total := len(chunks)
	for i := 0; i < total; i += u.settings.BatchSize {
		end := min(i+u.settings.BatchSize, total)
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		vectors, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed chunks %d-%d: %w", i, end-1, err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(batch))
		}

		for j, c := range batch {
			if err := builder.Add(c, vectors[j]); err != nil {
				return err
			}
		}

		if u.progress != nil {
			u.progress(StageEmbed, end, total)
		}
	}
	return nil
}
