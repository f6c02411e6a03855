package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"intramind/config"
	"intramind/internal/adapter/embedding"
	"intramind/internal/adapter/retriever"
	"intramind/internal/adapter/store"
	"intramind/internal/domain"
	"intramind/internal/usecase"
)

func main() {
	fs := pflag.NewFlagSet("intramind-benchmark", pflag.ExitOnError)
	dir := fs.String("dir", ".", "project directory holding the config and index")
	queries := fs.StringArrayP("query", "q", nil, "question to test (repeatable)")
	topK := fs.IntP("top-k", "k", 0, "number of results (default from config)")
	_ = fs.Parse(os.Args[1:])

	if len(*queries) == 0 {
		fmt.Println("Usage: go run ./cmd/benchmark --dir . -q \"question\" [-q \"another\"]")
		fmt.Println("\nReports, per question:")
		fmt.Println("  1. Retrieved chunks with their distances")
		fmt.Println("  2. The confidence the query pipeline would report")
		fmt.Println("  3. Whether the question falls through to the no-match answer")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *topK > 0 {
		cfg.Retrieve.TopK = *topK
	}

	ctx := context.Background()
	embedder, err := embedding.New(ctx, cfg.Embedding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}

	idx, err := store.Load(config.ResolvePath(*dir, cfg.Index.Path), embedder.ModelID())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	ret := retriever.NewSemanticRetriever(store.NewHandle(idx), embedder, cfg.Retrieve.MaxDistance)

	m := idx.Manifest()
	fmt.Println("RETRIEVAL BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Chunks indexed: %d from %d documents\n", m.Chunks, m.Documents)
	fmt.Printf("Model: %s (dim %d, metric %s)\n", m.ModelID, m.Dimension, m.Metric)
	fmt.Println()

	var total float64
	noMatch := 0
	for _, q := range *queries {
		c, ok := benchmark(ctx, ret, usecase.NormalizeQuestion(q), cfg.Retrieve.TopK)
		if !ok {
			noMatch++
			continue
		}
		total += c
	}

	answered := len(*queries) - noMatch
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Questions:          %d\n", len(*queries))
	fmt.Printf("  No-match answers:   %d\n", noMatch)
	if answered == 0 {
		fmt.Println("  Status: POOR - nothing retrieved, check the index and max_distance")
		return
	}

	avg := total / float64(answered)
	fmt.Printf("  Average confidence: %.2f\n", avg)
	switch {
	case avg > 0.7:
		fmt.Println("  Status: GOOD - retrieval is close to the questions")
	case avg > 0.5:
		fmt.Println("  Status: OK - results are somewhat related")
	default:
		fmt.Println("  Status: POOR - may need better embeddings or re-indexing")
	}
}

// benchmark prints the retrieval for one question and returns its
// confidence. ok is false when the question gets the no-match answer.
func benchmark(ctx context.Context, ret *retriever.SemanticRetriever, question string, topK int) (float64, bool) {
	fmt.Printf("Query: %q\n", question)
	fmt.Println(strings.Repeat("-", 70))

	results, err := ret.Retrieve(ctx, question, topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n\n", err)
		return 0, false
	}
	if len(results) == 0 {
		fmt.Printf("%s\n\n", usecase.NoMatchAnswer)
		return 0, false
	}

	distances := make([]float64, len(results))
	for i, r := range results {
		distances[i] = r.Distance
		printResult(i, r)
	}

	c := usecase.Confidence(distances)
	fmt.Printf("Confidence: %.2f\n\n", c)
	return c, true
}

func printResult(i int, r domain.RetrievedChunk) {
	preview := r.Chunk.Text
	if len([]rune(preview)) > 150 {
		preview = string([]rune(preview)[:150]) + "..."
	}
	preview = strings.ReplaceAll(preview, "\n", " ")

	similarity := 1 / (1 + r.Distance)
	rating := "LOW"
	if similarity > 0.7 {
		rating = "HIGH"
	} else if similarity > 0.5 {
		rating = "GOOD"
	} else if similarity > 0.3 {
		rating = "OK"
	}

	fmt.Printf("%d. [%s d=%.3f] %s\n", i+1, rating, r.Distance, r.Chunk.SourceFile())
	fmt.Printf("   %s\n\n", preview)
}
