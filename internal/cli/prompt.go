package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"intramind/internal/adapter/retriever"
	"intramind/internal/adapter/store"
	"intramind/internal/usecase"
)

var (
	promptHistory string
	promptChunks  bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt QUESTION",
	Short: "Print the grounded prompt for a question without generating",
	Long: `Retrieve context for a question and print the exact prompt the
generator would receive. Useful for checking retrieval and the history
window without spending a generation call.

Examples:
  intramind prompt "How many days of leave?"
  intramind prompt "And carry-over?" --history chat.json --chunks`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVar(&promptHistory, "history", "", "JSON file with prior conversation turns")
	promptCmd.Flags().BoolVar(&promptChunks, "chunks", false, "also list retrieved chunks with distances")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	history, err := readHistory(promptHistory)
	if err != nil {
		return err
	}

	embedder, err := newQueryEmbedder(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	idx, err := loadIndex(resolve(cfg.Index.Path), embedder.ModelID())
	if err != nil {
		return err
	}

	question := usecase.NormalizeQuestion(strings.Join(args, " "))
	ret := retriever.NewSemanticRetriever(store.NewHandle(idx), embedder, cfg.Retrieve.MaxDistance)
	retrieved, err := ret.Retrieve(cmd.Context(), question, cfg.Retrieve.TopK)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if len(retrieved) == 0 {
		fmt.Println(usecase.NoMatchAnswer)
		return nil
	}

	if promptChunks {
		fmt.Printf("Retrieved %d chunks:\n", len(retrieved))
		for i, r := range retrieved {
			fmt.Printf("  [%d] %s (distance: %.4f)\n", i+1, r.Chunk.SourceFile(), r.Distance)
		}
		distances := make([]float64, len(retrieved))
		for i, r := range retrieved {
			distances[i] = r.Distance
		}
		fmt.Printf("Confidence: %.2f\n\n", usecase.Confidence(distances))
	}

	selected := usecase.SelectContext(retrieved, cfg.Retrieve.MaxContextChunks)
	prompt, err := usecase.BuildPrompt(question, usecase.RenderContext(selected), history, cfg.Retrieve.MaxHistory)
	if err != nil {
		return err
	}

	fmt.Println(prompt)
	return nil
}
