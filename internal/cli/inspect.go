package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"intramind/internal/adapter/embedding"
	"intramind/internal/adapter/store"
)

var inspectJSON bool

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the manifest of the persisted index",
	Long: `Print the manifest of the index on disk and whether it is stale
relative to the current embedding and chunking settings.

Examples:
  intramind inspect
  intramind inspect --json`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output manifest as JSON")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	path := resolve(cfg.Index.Path)

	m, err := store.ReadManifest(path)
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	if inspectJSON {
		output, _ := json.MarshalIndent(m, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Index: %s\n", path)
	fmt.Printf("  Build ID:       %s\n", m.BuildID)
	fmt.Printf("  Built at:       %s\n", m.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  Schema version: %d\n", m.SchemaVersion)
	fmt.Printf("  Model:          %s (dim %d)\n", m.ModelID, m.Dimension)
	fmt.Printf("  Metric:         %s\n", m.Metric)
	fmt.Printf("  Chunking:       size %d, overlap %d\n", m.ChunkSize, m.ChunkOverlap)
	fmt.Printf("  Documents:      %d\n", m.Documents)
	fmt.Printf("  Chunks:         %d\n", m.Chunks)

	settings := store.IndexSettings{
		ModelID:      configuredModelID(cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimension),
		Metric:       cfg.Index.Metric,
		ChunkSize:    cfg.Index.ChunkSize,
		ChunkOverlap: cfg.Index.ChunkOverlap,
	}
	check := store.CheckRebuild(m, settings)
	if !check.NeedsRebuild {
		fmt.Println("\nIndex matches the current settings.")
		return nil
	}
	fmt.Println("\nRebuild required:")
	for _, reason := range check.Reasons {
		fmt.Printf("  - %s\n", reason)
	}
	return nil
}

// configuredModelID predicts the model id the configured embedder reports
// without constructing a remote client.
func configuredModelID(provider, model string, dimension int) string {
	switch provider {
	case "hash":
		return embedding.NewHashEmbedder(dimension).ModelID()
	case "openai", "":
		return embedding.ModelID(model, dimension)
	}
	return model
}
