package usecase

import (
	"bytes"
	"embed"
	"fmt"
	"math"
	"strings"
	"text/template"

	"intramind/internal/domain"
)

// NoMatchAnswer is returned verbatim when retrieval finds nothing.
const NoMatchAnswer = "No relevant information found in the knowledge base."

const (
	DefaultMaxContextChunks = 3
	DefaultMaxHistory       = 4
)

// NormalizeQuestion trims q and collapses every whitespace run to one space.
func NormalizeQuestion(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// Confidence maps each distance d to 1/(1+d), averages, clamps to [0,1]
// and rounds to two decimals. It is a heuristic ranking signal, not a
// calibrated probability. Negative distances count as 0; NaN is skipped.
func Confidence(distances []float64) float64 {
	var sum float64
	n := 0
	for _, d := range distances {
		if math.IsNaN(d) {
			continue
		}
		if d < 0 {
			d = 0
		}
		sum += 1 / (1 + d)
		n++
	}
	if n == 0 {
		return 0
	}

	c := sum / float64(n)
	c = math.Max(0, math.Min(c, 1))
	return math.RoundToEven(c*100) / 100
}

// SelectContext returns the first n retrieved chunks.
func SelectContext(retrieved []domain.RetrievedChunk, n int) []domain.RetrievedChunk {
	if n <= 0 {
		n = DefaultMaxContextChunks
	}
	if len(retrieved) < n {
		n = len(retrieved)
	}
	return retrieved[:n]
}

// RenderContext labels each selected chunk with its position and source
// file. Distances are left out on purpose.
func RenderContext(selected []domain.RetrievedChunk) string {
	blocks := make([]string, 0, len(selected))
	for i, r := range selected {
		blocks = append(blocks, fmt.Sprintf("[Source %d | %s]\n%s", i+1, r.Chunk.SourceFile(), strings.TrimSpace(r.Chunk.Text)))
	}
	return strings.Join(blocks, "\n\n")
}

// RecentHistory returns the last max turns in their original order.
func RecentHistory(history []domain.ConversationTurn, max int) []domain.ConversationTurn {
	if max <= 0 {
		return nil
	}
	if len(history) > max {
		history = history[len(history)-max:]
	}
	return history
}

// RenderHistory writes one "User: ..." or "Assistant: ..." line per turn.
func RenderHistory(turns []domain.ConversationTurn) string {
	var sb strings.Builder
	for _, t := range turns {
		role := "Assistant"
		if t.Role == domain.RoleUser {
			role = "User"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(t.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

//go:embed templates/*.txt
var promptTemplates embed.FS

var answerPrompt = template.Must(template.New("answer_prompt.txt").ParseFS(promptTemplates, "templates/answer_prompt.txt"))

// PromptData is the input of the answer prompt template.
type PromptData struct {
	Question     string
	Context      string
	Conversation string
}

// BuildPrompt renders the grounded answer prompt. Only the last maxHistory
// turns of history are included.
func BuildPrompt(question, context string, history []domain.ConversationTurn, maxHistory int) (string, error) {
	data := PromptData{
		Question:     question,
		Context:      context,
		Conversation: RenderHistory(RecentHistory(history, maxHistory)),
	}

	var buf bytes.Buffer
	if err := answerPrompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// NoMatchResult is the fixed response for a question with no retrieved
// chunks.
func NoMatchResult() domain.QueryResult {
	return domain.QueryResult{
		Answer:     NoMatchAnswer,
		Confidence: 0,
		Sources:    []string{},
	}
}

// FormatResult builds the caller response. Sources are the distinct
// non-empty source files of the selected chunks in first-seen order.
func FormatResult(answer string, confidence float64, selected []domain.RetrievedChunk) domain.QueryResult {
	sources := make([]string, 0, len(selected))
	seen := make(map[string]struct{}, len(selected))
	for _, r := range selected {
		src := r.Chunk.SourceFile()
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}

	return domain.QueryResult{
		Answer:     strings.TrimSpace(answer),
		Confidence: confidence,
		Sources:    sources,
	}
}
