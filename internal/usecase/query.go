package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"intramind/internal/domain"
	"intramind/internal/port"
)

// QuerySettings bound the retrieval and prompt windows.
type QuerySettings struct {
	TopK             int
	MaxContextChunks int
	MaxHistory       int
}

// QueryUseCase answers questions against the served index.
type QueryUseCase struct {
	retriever port.Retriever
	generator port.Generator
	settings  QuerySettings
	log       zerolog.Logger
}

// NewQueryUseCase creates a new query use case.
func NewQueryUseCase(
	retriever port.Retriever,
	generator port.Generator,
	settings QuerySettings,
	log zerolog.Logger,
) *QueryUseCase {
	if settings.MaxContextChunks <= 0 {
		settings.MaxContextChunks = DefaultMaxContextChunks
	}
	if settings.MaxHistory < 0 {
		settings.MaxHistory = DefaultMaxHistory
	}
	return &QueryUseCase{
		retriever: retriever,
		generator: generator,
		settings:  settings,
		log:       log,
	}
}

// Query runs the full pipeline for one question. A question with no
// retrieved chunks gets NoMatchResult without calling the generator.
func (u *QueryUseCase) Query(ctx context.Context, caller domain.Caller, question string, history []domain.ConversationTurn) (domain.QueryResult, error) {
	for i, turn := range history {
		if !turn.Role.Valid() {
			return domain.QueryResult{}, fmt.Errorf("%w: chat_history[%d]: unknown role %q", domain.ErrInvalidInput, i, turn.Role)
		}
	}

	start := time.Now()
	log := u.log.With().Str("user", caller.Subject).Logger()
	log.Info().Str("action", "query").Msg("query started")

	question = NormalizeQuestion(question)

	retrieved, err := u.retriever.Retrieve(ctx, question, u.settings.TopK)
	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("retrieval failed")
		return domain.QueryResult{}, err
	}

	if len(retrieved) == 0 {
		log.Info().Str("action", "no_relevant_docs").Dur("duration", time.Since(start)).Msg("no relevant documents")
		return NoMatchResult(), nil
	}

	distances := make([]float64, len(retrieved))
	for i, r := range retrieved {
		distances[i] = r.Distance
	}
	confidence := Confidence(distances)

	selected := SelectContext(retrieved, u.settings.MaxContextChunks)
	prompt, err := BuildPrompt(question, RenderContext(selected), history, u.settings.MaxHistory)
	if err != nil {
		return domain.QueryResult{}, err
	}

	answer, err := u.generator.Generate(ctx, prompt)
	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("generation failed")
		return domain.QueryResult{}, err
	}

	result := FormatResult(answer, confidence, selected)
	log.Info().
		Str("action", "success").
		Float64("confidence", result.Confidence).
		Int("sources", len(result.Sources)).
		Dur("duration", time.Since(start)).
		Msg("query answered")

	return result, nil
}
