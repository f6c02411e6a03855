package domain

import "time"

// MetaSourceFile is the metadata key every document and chunk must carry.
const MetaSourceFile = "source_file"

// SourceDocument is the extracted text of one file plus its descriptor tags.
type SourceDocument struct {
	Text     string
	Metadata map[string]string
}

// SourceFile returns the document's source_file metadata value.
func (d SourceDocument) SourceFile() string {
	return d.Metadata[MetaSourceFile]
}

// Chunk is a contiguous span of a document's text.
type Chunk struct {
	ID       string            `json:"id"`
	Index    int               `json:"index"`
	Start    int               `json:"start"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SourceFile returns the chunk's source_file metadata value.
func (c Chunk) SourceFile() string {
	return c.Metadata[MetaSourceFile]
}

// RetrievedChunk pairs a chunk with its distance to the query vector.
// Distance is in the index metric; lower is closer.
type RetrievedChunk struct {
	Chunk    Chunk
	Distance float64
}

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ConversationTurn is one message of caller-supplied chat history.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// QueryResult is the answer returned to the caller.
type QueryResult struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// Caller is the verified identity the auth layer hands to the pipeline.
type Caller struct {
	Subject string
	Groups  []string
}

// Manifest describes a persisted chunk index.
type Manifest struct {
	SchemaVersion int       `json:"schema_version"`
	BuildID       string    `json:"build_id"`
	ModelID       string    `json:"model_id"`
	Dimension     int       `json:"dimension"`
	Metric        string    `json:"metric"`
	ChunkSize     int       `json:"chunk_size"`
	ChunkOverlap  int       `json:"chunk_overlap"`
	Chunks        int       `json:"chunks"`
	Documents     int       `json:"documents"`
	BuiltAt       time.Time `json:"built_at"`
}
