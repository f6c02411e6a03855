package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"intramind/config"
	"intramind/internal/adapter/cache"
	"intramind/internal/adapter/embedding"
	"intramind/internal/adapter/llm"
	"intramind/internal/adapter/retriever"
	"intramind/internal/adapter/store"
	"intramind/internal/port"
	"intramind/internal/usecase"
)

// App holds the collaborators shared by the query-side commands. It is
// built once per process and passed down explicitly.
type App struct {
	Config    *config.Config
	Log       zerolog.Logger
	IndexPath string
	Index     *store.Handle
	Embedder  port.Embedder
	Generator port.Generator
	Retriever *retriever.SemanticRetriever
	Query     *usecase.QueryUseCase
}

// newQueryEmbedder builds the configured embedder behind a query vector
// cache.
func newQueryEmbedder(ctx context.Context, cfg *config.Config) (port.Embedder, error) {
	e, err := embedding.New(ctx, cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if cfg.Embedding.CacheSize > 0 {
		e = cache.NewCachedEmbedder(e, cache.NewVectorCache(cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL))
	}
	return e, nil
}

// loadIndex opens the persisted index, failing when it was built with a
// different embedding model than modelID.
func loadIndex(path, modelID string) (*store.ChunkIndex, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no index found at %s. Run 'intramind index' first", path)
	}
	return store.Load(path, modelID)
}

// newApp wires config, embedder, index, retriever and generator into the
// query use case.
func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	embedder, err := newQueryEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}

	indexPath := resolve(cfg.Index.Path)
	idx, err := loadIndex(indexPath, embedder.ModelID())
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("path", indexPath).
		Str("build_id", idx.Manifest().BuildID).
		Int("chunks", idx.Len()).
		Str("model", idx.Manifest().ModelID).
		Msg("index loaded")

	generator, err := llm.New(ctx, cfg.Generation)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	handle := store.NewHandle(idx)
	ret := retriever.NewSemanticRetriever(handle, embedder, cfg.Retrieve.MaxDistance)
	query := usecase.NewQueryUseCase(ret, generator, usecase.QuerySettings{
		TopK:             cfg.Retrieve.TopK,
		MaxContextChunks: cfg.Retrieve.MaxContextChunks,
		MaxHistory:       cfg.Retrieve.MaxHistory,
	}, log)

	return &App{
		Config:    cfg,
		Log:       log,
		IndexPath: indexPath,
		Index:     handle,
		Embedder:  embedder,
		Generator: generator,
		Retriever: ret,
		Query:     query,
	}, nil
}

// Reload swaps in the index currently on disk. The served index is kept
// when the new one fails to load.
func (a *App) Reload() error {
	idx, err := a.Index.Reload(a.IndexPath, a.Embedder.ModelID())
	if err != nil {
		return err
	}
	a.Log.Info().Str("build_id", idx.Manifest().BuildID).Int("chunks", idx.Len()).Msg("index reloaded")
	return nil
}
