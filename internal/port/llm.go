package port

import "context"

// Generator produces an answer from a fully assembled prompt.
type Generator interface {
	// Generate sends prompt as a single instruction and returns the raw text.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
