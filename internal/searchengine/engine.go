// Package searchengine stores indexed chunks and answers keyword, vector and
// hybrid queries against them. Two engines are provided: ElasticEngine talks
// to an Elasticsearch cluster, LocalEngine keeps everything in process.
package searchengine

import (
	"context"
	"time"
)

// DefaultIndex is the index (or collection) chunks are written to.
const DefaultIndex = "kb_chunks"

// Mode selects how a query is scored.
type Mode string

const (
	ModeText   Mode = "text"
	ModeVector Mode = "vector"
	ModeHybrid Mode = "hybrid"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeText, ModeVector, ModeHybrid:
		return true
	}
	return false
}

// Chunk is the indexing payload for one chunk.
type Chunk struct {
	ChunkID    int64     `json:"chunk_id"`
	DocumentID int64     `json:"document_id"`
	Title      string    `json:"title"`
	Text       string    `json:"chunk_text"`
	ChunkIndex int       `json:"chunk_index"`
	OwnerID    string    `json:"owner_id,omitempty"`
	PropertyID *int64    `json:"property_id,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Hit is a chunk returned by a search together with its engine score.
type Hit struct {
	Chunk Chunk
	Score float64
}

// Filter restricts a search to one tenant. Empty fields are not applied.
// Both the keyword and the vector clause are filtered identically.
type Filter struct {
	OwnerID    string
	PropertyID *int64
}

// Query describes one search request.
type Query struct {
	Mode   Mode
	Text   string
	Vector []float32
	Size   int
	Filter Filter
}

// DeleteResult reports the outcome of a delete-by-document.
type DeleteResult struct {
	Deleted  int      `json:"deleted"`
	Failures []string `json:"failures,omitempty"`
}

// Engine is the search backend used by the indexer and the retriever.
type Engine interface {
	// EnsureIndex creates the chunk index with a vector field of dims
	// dimensions if it does not exist. An existing index with a different
	// dimension is a configuration error.
	EnsureIndex(ctx context.Context, dims int) error

	// Index adds or replaces chunks, keyed by ChunkID.
	Index(ctx context.Context, chunks []Chunk) error

	// Search runs q and returns hits ordered by descending score.
	Search(ctx context.Context, q Query) ([]Hit, error)

	// DeleteByDocument removes every chunk of a document.
	DeleteByDocument(ctx context.Context, documentID int64) (DeleteResult, error)

	// Name identifies the backend in logs and errors.
	Name() string
}
