package store

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"intramind/internal/domain"
)

// Metric names the distance function of an index. Lower is closer.
type Metric string

const (
	// MetricL2 is squared Euclidean distance, the flat-L2 convention.
	MetricL2        Metric = "l2"
	MetricEuclidean Metric = "euclidean"
	// MetricCosine is 1 - cosine similarity, clamped at 0.
	MetricCosine Metric = "cosine"
)

// ParseMetric validates a metric name. An empty name means MetricL2.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricL2:
		return MetricL2, nil
	case MetricEuclidean, MetricCosine:
		return Metric(s), nil
	}
	return "", domain.NewConfigurationError("index", "unknown metric %q", s)
}

func (m Metric) distance(a, b []float32) float64 {
	switch m {
	case MetricCosine:
		return cosineDistance(a, b)
	case MetricEuclidean:
		return math.Sqrt(squaredL2(a, b))
	default:
		return squaredL2(a, b)
	}
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

func cosineDistance(a, b []float32) float64 {
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 1
	}

	d := 1 - dotProduct/(math.Sqrt(normA)*math.Sqrt(normB))
	if d < 0 {
		return 0
	}
	return d
}

// ChunkIndex is an immutable set of chunks and their vectors searchable by
// exact k-nearest-neighbor. It is safe for concurrent readers.
type ChunkIndex struct {
	manifest domain.Manifest
	chunks   []domain.Chunk
	vectors  [][]float32
}

func (idx *ChunkIndex) Manifest() domain.Manifest { return idx.manifest }

func (idx *ChunkIndex) Len() int { return len(idx.chunks) }

func (idx *ChunkIndex) Metric() Metric { return Metric(idx.manifest.Metric) }

// Chunk returns the i-th chunk in insertion order.
func (idx *ChunkIndex) Chunk(i int) domain.Chunk { return idx.chunks[i] }

// Search returns the k chunks closest to query in ascending distance.
// Equal distances keep insertion order. An empty index or k <= 0 yields
// an empty result.
func (idx *ChunkIndex) Search(query []float32, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 || len(idx.chunks) == 0 {
		return []domain.RetrievedChunk{}, nil
	}
	if len(query) != idx.manifest.Dimension {
		return nil, domain.NewConfigurationError("search", "query dimension %d, index dimension %d", len(query), idx.manifest.Dimension)
	}

	metric := idx.Metric()
	type scored struct {
		pos      int
		distance float64
	}

	scores := make([]scored, len(idx.vectors))
	for i, v := range idx.vectors {
		scores[i] = scored{pos: i, distance: metric.distance(query, v)}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].distance < scores[j].distance
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]domain.RetrievedChunk, k)
	for i := 0; i < k; i++ {
		results[i] = domain.RetrievedChunk{
			Chunk:    idx.chunks[scores[i].pos],
			Distance: scores[i].distance,
		}
	}
	return results, nil
}

// Builder accumulates chunks and vectors for a new ChunkIndex.
type Builder struct {
	modelID   string
	dimension int
	metric    Metric
	size      int
	overlap   int
	chunks    []domain.Chunk
	vectors   [][]float32
}

// NewBuilder starts an index for vectors of the given model. A zero
// dimension is taken from the first added vector.
func NewBuilder(modelID string, dimension int, metric Metric) (*Builder, error) {
	if modelID == "" {
		return nil, domain.NewConfigurationError("index", "embedding model id is required")
	}
	m, err := ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}
	return &Builder{modelID: modelID, dimension: dimension, metric: m}, nil
}

// WithChunking records the chunk parameters in the manifest.
func (b *Builder) WithChunking(size, overlap int) *Builder {
	b.size, b.overlap = size, overlap
	return b
}

// Add appends a chunk and a copy of its vector. Vectors must all share
// one dimension.
func (b *Builder) Add(chunk domain.Chunk, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector for chunk %s", domain.ErrInvalidInput, chunk.ID)
	}
	if b.dimension == 0 {
		b.dimension = len(vector)
	}
	if len(vector) != b.dimension {
		return fmt.Errorf("%w: vector dimension mismatch: expected %d, got %d", domain.ErrInvalidInput, b.dimension, len(vector))
	}
	b.chunks = append(b.chunks, chunk)
	b.vectors = append(b.vectors, slices.Clone(vector))
	return nil
}

func (b *Builder) Len() int { return len(b.chunks) }

// Build freezes the accumulated entries into a ChunkIndex with a fresh
// build id.
func (b *Builder) Build() *ChunkIndex {
	docs := make(map[string]struct{})
	for _, c := range b.chunks {
		docs[c.SourceFile()] = struct{}{}
	}

	return &ChunkIndex{
		manifest: domain.Manifest{
			SchemaVersion: CurrentSchemaVersion,
			BuildID:       uuid.NewString(),
			ModelID:       b.modelID,
			Dimension:     b.dimension,
			Metric:        string(b.metric),
			ChunkSize:     b.size,
			ChunkOverlap:  b.overlap,
			Chunks:        len(b.chunks),
			Documents:     len(docs),
			BuiltAt:       time.Now().UTC(),
		},
		chunks:  b.chunks,
		vectors: b.vectors,
	}
}
