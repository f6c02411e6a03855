package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"strings"

	"intramind/internal/domain"
)

// separators are tried in order when choosing where a chunk ends.
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
	[]rune(" "),
}

// RecursiveChunker splits text into rune windows of at most size runes.
// Consecutive chunks of a document share exactly overlap runes.
type RecursiveChunker struct {
	size    int
	overlap int
}

func NewRecursiveChunker(size, overlap int) (*RecursiveChunker, error) {
	if size <= 0 {
		return nil, domain.NewConfigurationError("chunker", "chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, domain.NewConfigurationError("chunker", "chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &RecursiveChunker{size: size, overlap: overlap}, nil
}

func (c *RecursiveChunker) Size() int    { return c.size }
func (c *RecursiveChunker) Overlap() int { return c.overlap }

// Chunk splits every document in order. Whitespace-only documents produce
// no chunks.
func (c *RecursiveChunker) Chunk(docs []domain.SourceDocument) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, doc := range docs {
		source := doc.SourceFile()
		if source == "" {
			return nil, domain.NewConfigurationError("chunker", "document without %s metadata", domain.MetaSourceFile)
		}
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}

		for i, span := range c.spans([]rune(doc.Text)) {
			chunks = append(chunks, domain.Chunk{
				ID:       generateChunkID(source, i, span.start),
				Index:    i,
				Start:    span.start,
				Text:     span.text,
				Metadata: maps.Clone(doc.Metadata),
			})
		}
	}
	return chunks, nil
}

type span struct {
	start int
	text  string
}

func (c *RecursiveChunker) spans(r []rune) []span {
	var out []span
	minLen := max(c.overlap+1, c.size/2)

	start := 0
	for {
		if len(r)-start <= c.size {
			out = append(out, span{start: start, text: string(r[start:])})
			return out
		}

		end := c.cut(r, start, minLen)
		out = append(out, span{start: start, text: string(r[start:end])})
		start = end - c.overlap
	}
}

// cut returns the end of the chunk starting at start: just after the last
// separator in the window that leaves at least minLen runes, or the window
// end when no separator qualifies.
func (c *RecursiveChunker) cut(r []rune, start, minLen int) int {
	limit := start + c.size
	for _, sep := range separators {
		for i := limit - len(sep); i+len(sep)-start >= minLen; i-- {
			if hasPrefixAt(r, i, sep) {
				return i + len(sep)
			}
		}
	}
	return limit
}

func hasPrefixAt(r []rune, i int, sep []rune) bool {
	if i < 0 || i+len(sep) > len(r) {
		return false
	}
	for j, s := range sep {
		if r[i+j] != s {
			return false
		}
	}
	return true
}

func generateChunkID(source string, index, start int) string {
	data := fmt.Sprintf("%s:%d:%d", source, index, start)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
