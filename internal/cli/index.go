package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"intramind/internal/adapter/chunker"
	"intramind/internal/adapter/embedding"
	"intramind/internal/adapter/fs"
	"intramind/internal/adapter/loader"
	"intramind/internal/adapter/store"
	"intramind/internal/usecase"
)

var (
	indexDataDir  string
	indexMetadata string
	indexOut      string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the vector index from the staged corpus",
	Long: `Load every document described in the metadata file, split it into
overlapping chunks, embed the chunks and write the index atomically.
An existing index is replaced only when the new build succeeds.

Examples:
  intramind index
  intramind index --data ./Data --metadata ./document_metadata.yaml
  intramind index --out ./_vector_store/index.db`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&indexDataDir, "data", "", "directory of staged documents (default from config)")
	indexCmd.Flags().StringVar(&indexMetadata, "metadata", "", "metadata descriptor file (default from config)")
	indexCmd.Flags().StringVar(&indexOut, "out", "", "index output path (default from config)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	dataDir := resolve(cfg.Index.DataDir)
	if indexDataDir != "" {
		dataDir = indexDataDir
	}
	metadataPath := resolve(cfg.Index.MetadataFile)
	if indexMetadata != "" {
		metadataPath = indexMetadata
	}
	outPath := resolve(cfg.Index.Path)
	if indexOut != "" {
		outPath = indexOut
	}

	info, err := os.Stat(dataDir)
	if err != nil {
		return fmt.Errorf("data directory does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data path is not a directory: %s", dataDir)
	}

	embedder, err := embedding.New(cmd.Context(), cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	chk, err := chunker.NewRecursiveChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		return err
	}

	docLoader := loader.New(
		fs.NewWalker(cfg.Index.Includes, cfg.Index.Excludes),
		loader.WithCleanWhitespace(cfg.Index.CleanWhitespace),
		loader.WithLogger(log),
	)

	indexUC := usecase.NewIndexUseCase(docLoader, chk, embedder, usecase.IndexSettings{
		Metric:       store.Metric(cfg.Index.Metric),
		ChunkSize:    cfg.Index.ChunkSize,
		ChunkOverlap: cfg.Index.ChunkOverlap,
		BatchSize:    cfg.Embedding.BatchSize,
	}, log)

	fmt.Fprintf(os.Stderr, "Indexing %s with %s...\n", dataDir, embedder.ModelID())

	var bar *progressbar.ProgressBar
	var startTime time.Time

	showProgress := term.IsTerminal(int(os.Stderr.Fd()))
	indexUC.OnProgress(func(stage string, processed, total int) {
		if !showProgress {
			log.Debug().Str("stage", stage).Int("done", processed).Int("total", total).Msg("progress")
			return
		}
		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(os.Stderr)
				}),
			)
		}

		_ = bar.Set(processed)

		if processed > 0 && processed < total {
			rate := float64(processed) / time.Since(startTime).Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-processed)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Embedding[reset] ETA: %s", formatDuration(eta)))
			}
		}
	})

	result, err := indexUC.Index(cmd.Context(), dataDir, metadataPath, outPath)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Documents:  %d\n", result.Documents)
	fmt.Printf("  Chunks:     %d\n", result.Chunks)
	fmt.Printf("  Model:      %s (dim %d)\n", result.Manifest.ModelID, result.Manifest.Dimension)
	fmt.Printf("  Build ID:   %s\n", result.Manifest.BuildID)
	fmt.Printf("  Duration:   %s\n", formatDuration(result.Duration))
	fmt.Printf("\nIndex stored at: %s\n", outPath)
	return nil
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
