package searchengine

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/embeddings"
)

const (
	vectorFile   = "chromem.gob.gz"
	manifestFile = "chunks.gob.gz"
)

// LocalEngine implements Engine in process. Vectors live in a chromem-go
// collection; a mirror of chunk metadata serves keyword scoring. When dir is
// set, both are written to disk after every mutation.
type LocalEngine struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
	dir        string

	dims   int
	chunks map[int64]Chunk
}

// manifest is the on-disk form of the keyword mirror.
type manifest struct {
	Dims   int
	Chunks map[int64]Chunk
}

// NewLocalEngine creates a LocalEngine, loading previously persisted state
// from dir when present. An empty dir keeps everything in memory.
func NewLocalEngine(embedder embeddings.Embedder, dir string) (*LocalEngine, error) {
	e := &LocalEngine{
		db:        chromem.NewDB(),
		embedFunc: embeddings.ToChromemFunc(embedder),
		dir:       dir,
		chunks:    make(map[int64]Chunk),
	}

	if dir != "" {
		if _, err := os.Stat(filepath.Join(dir, vectorFile)); err == nil {
			if err := e.load(); err != nil {
				return nil, err
			}
			return e, nil
		}
	}

	col, err := e.db.GetOrCreateCollection(DefaultIndex, nil, e.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	e.collection = col
	return e, nil
}

func (e *LocalEngine) Name() string { return "local" }

func (e *LocalEngine) EnsureIndex(_ context.Context, dims int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims != 0 && e.dims != dims {
		return apperr.Configuration("embedding.dimensions",
			"local index holds %d-dimensional vectors, embedder produces %d", e.dims, dims)
	}
	e.dims = dims
	return nil
}

func (e *LocalEngine) Index(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		if e.dims != 0 && len(c.Embedding) != 0 && len(c.Embedding) != e.dims {
			return apperr.Configuration("embedding.dimensions",
				"chunk %d has %d dimensions, index expects %d", c.ChunkID, len(c.Embedding), e.dims)
		}
		docs[i] = chromem.Document{
			ID:        chunkKey(c.ChunkID),
			Content:   c.Text,
			Embedding: c.Embedding,
			Metadata:  chunkMetadata(c),
		}
	}
	if err := e.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}

	for _, c := range chunks {
		c.Embedding = nil
		if c.CreatedAt.IsZero() {
			c.CreatedAt = time.Now().UTC()
		}
		e.chunks[c.ChunkID] = c
	}
	return e.persist()
}

func (e *LocalEngine) Search(ctx context.Context, q Query) ([]Hit, error) {
	if q.Size <= 0 {
		q.Size = 10
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var vecScores map[int64]float64
	if q.Mode != ModeText {
		if len(q.Vector) == 0 {
			return nil, apperr.Validation("vector", "a query vector is required for %s search", q.Mode)
		}
		n := q.Size
		if q.Mode == ModeHybrid {
			// Every matching chunk can still be lifted by the keyword clause.
			n = e.collection.Count()
		}
		var err error
		vecScores, err = e.vectorScores(ctx, q.Vector, n, q.Filter)
		if err != nil {
			return nil, err
		}
	}

	var hits []Hit
	switch q.Mode {
	case ModeVector:
		for id, s := range vecScores {
			hits = append(hits, Hit{Chunk: e.chunks[id], Score: s})
		}
	case ModeText, ModeHybrid:
		terms := Terms(q.Text)
		maxKeyword := float64(len(terms)) * (1 + titleBoost)
		for id, c := range e.chunks {
			if !matchesFilter(c, q.Filter) {
				continue
			}
			kw := keywordScore(terms, c.Title, c.Text)
			if q.Mode == ModeText {
				if kw > 0 {
					hits = append(hits, Hit{Chunk: c, Score: kw})
				}
				continue
			}
			vs, ok := vecScores[id]
			if !ok && kw == 0 {
				continue
			}
			if maxKeyword > 0 {
				kw /= maxKeyword
			}
			hits = append(hits, Hit{Chunk: c, Score: vs + kw})
		}
	default:
		return nil, apperr.Validation("search_type", "unknown search type %q", q.Mode)
	}

	sortHits(hits)
	if len(hits) > q.Size {
		hits = hits[:q.Size]
	}
	return hits, nil
}

// vectorScores returns cosine scores mapped to [0,1] the way Elasticsearch
// scores cosine kNN hits.
func (e *LocalEngine) vectorScores(ctx context.Context, vec []float32, n int, f Filter) (map[int64]float64, error) {
	count := e.collection.Count()
	if count == 0 {
		return nil, nil
	}
	n = min(n, count)
	results, err := e.collection.QueryEmbedding(ctx, vec, n, filterWhere(f), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	scores := make(map[int64]float64, len(results))
	for _, r := range results {
		id, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			continue
		}
		if _, ok := e.chunks[id]; !ok {
			continue
		}
		scores[id] = min(max((1+float64(r.Similarity))/2, 0), 1)
	}
	return scores, nil
}

func (e *LocalEngine) DeleteByDocument(ctx context.Context, documentID int64) (DeleteResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ids []int64
	for id, c := range e.chunks {
		if c.DocumentID == documentID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return DeleteResult{}, nil
	}

	where := map[string]string{"document_id": strconv.FormatInt(documentID, 10)}
	if err := e.collection.Delete(ctx, where, nil); err != nil {
		return DeleteResult{Failures: []string{err.Error()}}, fmt.Errorf("chromem delete: %w", err)
	}
	for _, id := range ids {
		delete(e.chunks, id)
	}
	return DeleteResult{Deleted: len(ids)}, e.persist()
}

// Count returns the number of indexed chunks.
func (e *LocalEngine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.chunks)
}

// persist must be called with the write lock held.
func (e *LocalEngine) persist() error {
	if e.dir == "" {
		return nil
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := e.db.ExportToFile(filepath.Join(e.dir, vectorFile), true, ""); err != nil {
		return fmt.Errorf("export vectors: %w", err)
	}

	f, err := os.Create(filepath.Join(e.dir, manifestFile))
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if err := gob.NewEncoder(zw).Encode(manifest{Dims: e.dims, Chunks: e.chunks}); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return zw.Close()
}

func (e *LocalEngine) load() error {
	if err := e.db.ImportFromFile(filepath.Join(e.dir, vectorFile), ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}
	col := e.db.GetCollection(DefaultIndex, e.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", DefaultIndex)
	}
	e.collection = col

	f, err := os.Open(filepath.Join(e.dir, manifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := gob.NewDecoder(zr).Decode(&m); err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}
	e.dims = m.Dims
	if m.Chunks != nil {
		e.chunks = m.Chunks
	}
	return nil
}

func chunkKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// chunkMetadata flattens the filterable fields for chromem.
func chunkMetadata(c Chunk) map[string]string {
	md := map[string]string{
		"document_id": strconv.FormatInt(c.DocumentID, 10),
		"chunk_index": strconv.Itoa(c.ChunkIndex),
		"title":       c.Title,
	}
	if c.OwnerID != "" {
		md["owner_id"] = c.OwnerID
	}
	if c.PropertyID != nil {
		md["property_id"] = strconv.FormatInt(*c.PropertyID, 10)
	}
	return md
}

func filterWhere(f Filter) map[string]string {
	where := make(map[string]string)
	if f.OwnerID != "" {
		where["owner_id"] = f.OwnerID
	}
	if f.PropertyID != nil {
		where["property_id"] = strconv.FormatInt(*f.PropertyID, 10)
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

func matchesFilter(c Chunk, f Filter) bool {
	if f.OwnerID != "" && c.OwnerID != f.OwnerID {
		return false
	}
	if f.PropertyID != nil && (c.PropertyID == nil || *c.PropertyID != *f.PropertyID) {
		return false
	}
	return true
}

// sortHits orders by descending score, breaking ties by chunk id.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ChunkID < hits[j].Chunk.ChunkID
	})
}
