package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"intramind/internal/domain"
)

var (
	queryHistory string
	queryJSON    bool
	queryTopK    int
)

var queryCmd = &cobra.Command{
	Use:     "query QUESTION",
	Aliases: []string{"ask"},
	Short:   "Answer one question from the indexed corpus",
	Long: `Run one question through the full pipeline: retrieve the closest chunks,
score confidence, build the grounded prompt and generate the answer.

The optional history file is a JSON array of {"role","content"} turns
with role "user" or "assistant".

Examples:
  intramind query "How many days of annual leave do I get?"
  intramind ask "And can they carry over?" --history chat.json --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryHistory, "history", "", "JSON file with prior conversation turns")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
}

func readHistory(path string) ([]domain.ConversationTurn, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	var history []domain.ConversationTurn
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to parse history file: %w", err)
	}
	return history, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if queryTopK > 0 {
		cfg.Retrieve.TopK = queryTopK
	}

	history, err := readHistory(queryHistory)
	if err != nil {
		return err
	}

	app, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}

	caller := domain.Caller{Subject: localUser()}
	result, err := app.Query.Query(cmd.Context(), caller, strings.Join(args, " "), history)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(result.Answer)
	fmt.Printf("\nConfidence: %.2f\n", result.Confidence)
	if len(result.Sources) > 0 {
		fmt.Println("Sources:")
		for _, s := range result.Sources {
			fmt.Printf("  - %s\n", s)
		}
	}
	return nil
}

// localUser names the operator running a one-shot command.
func localUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}
