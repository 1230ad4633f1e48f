package domain

import "time"

// Metadata keys stamped onto every chunk during ingestion.
const (
	MetaSource       = "source"
	MetaDocumentType = "document_type"
	MetaDocumentID   = "document_id"
	MetaChunkIndex   = "chunk_index"
	MetaStartOffset  = "start_offset"
	MetaEndOffset    = "end_offset"
	MetaIngestedAt   = "ingested_at"
)

// Document is the ingestion input: already-extracted text plus caller
// metadata. It is not retained after chunking.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Chunk is a contiguous span of a document's text. Text is always the
// literal document slice [StartOffset:EndOffset).
type Chunk struct {
	ID          string
	DocumentID  string
	Index       int
	StartOffset int
	EndOffset   int
	Text        string
	Metadata    map[string]any
}

// Entry is what the vector index stores: the embedded chunk.
type Entry struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]any
}

// ScoredEntry is a search result. Higher score means more similar.
type ScoredEntry struct {
	Entry Entry
	Score float64
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single conversational message. Immutable once appended.
type Turn struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// SessionInfo is the inspectable view of a session.
type SessionInfo struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
	Metadata     map[string]any
	History      []Turn
}

// Source attributes a retrieved chunk in a query response.
type Source struct {
	Text     string
	Metadata map[string]any
	Score    float64
}

// QueryResult is the answer to a query plus its provenance.
type QueryResult struct {
	Answer    string
	Sources   []Source
	SessionID string
}

// IndexStats describes the current state of a vector index. Generation
// increments on every mutation and is used for cache invalidation.
type IndexStats struct {
	Entries    int
	Dimension  int
	Generation uint64
}
