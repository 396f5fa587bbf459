package indexer

import (
	"time"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/chunker"
	"github.com/ziadkadry99/hostkb/internal/documents"
	"github.com/ziadkadry99/hostkb/internal/searchengine"
)

// MaxChunksPerDocument bounds chunk_index so chunk ids never collide across
// documents.
const MaxChunksPerDocument = 10000

// ChunkID derives the corpus-wide chunk id from its document and position.
func ChunkID(documentID int64, chunkIndex int) int64 {
	return documentID*MaxChunksPerDocument + int64(chunkIndex)
}

// BuildChunks turns chunker output into index payloads for doc. vectors must
// be parallel to pieces.
func BuildChunks(doc *documents.Document, pieces []chunker.Piece, vectors [][]float32, now time.Time) ([]searchengine.Chunk, error) {
	if len(pieces) > MaxChunksPerDocument {
		return nil, apperr.Validation("text", "document produces %d chunks, at most %d are supported", len(pieces), MaxChunksPerDocument)
	}
	if len(vectors) != len(pieces) {
		return nil, apperr.Unavailable("embedding", errCountMismatch(len(vectors), len(pieces)))
	}

	chunks := make([]searchengine.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = searchengine.Chunk{
			ChunkID:    ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Title:      p.Title,
			Text:       p.Text(),
			ChunkIndex: i,
			OwnerID:    doc.OwnerID,
			PropertyID: doc.PropertyID,
			Embedding:  vectors[i],
			CreatedAt:  now,
		}
	}
	return chunks, nil
}
