package searchengine

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ziadkadry99/hostkb/internal/apperr"
)

// mockEmbedder returns deterministic embeddings based on text content.
// Texts sharing characters land on the same vector positions.
type mockEmbedder struct {
	dims int
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) Name() string    { return "mock" }

func (m *mockEmbedder) vector(text string) []float32 {
	vec := make([]float32, m.dims)
	for i, ch := range text {
		vec[(int(ch)+i)%m.dims] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func int64p(v int64) *int64 { return &v }

func seed(t *testing.T, e *LocalEngine, emb *mockEmbedder) {
	t.Helper()
	chunks := []Chunk{
		{ChunkID: 10000, DocumentID: 1, ChunkIndex: 0, Title: "pricing", Text: "[pricing]\nPrice: 120 EUR per night", OwnerID: "42", PropertyID: int64p(7)},
		{ChunkID: 10001, DocumentID: 1, ChunkIndex: 1, Title: "other", Text: "[other]\nWe love hosting families", OwnerID: "42", PropertyID: int64p(7)},
		{ChunkID: 20000, DocumentID: 2, ChunkIndex: 0, Title: "pricing", Text: "[pricing]\nPrice: 300 EUR per night", OwnerID: "99", PropertyID: int64p(8)},
		{ChunkID: 30000, DocumentID: 3, ChunkIndex: 0, Title: "house_rules", Text: "[house_rules]\nNo parties, no smoking", OwnerID: "42", PropertyID: int64p(9)},
	}
	for i := range chunks {
		chunks[i].Embedding = emb.vector(chunks[i].Text)
	}
	if err := e.Index(context.Background(), chunks); err != nil {
		t.Fatalf("Index: %v", err)
	}
}

func TestLocalEngine_TextSearchFiltersOwner(t *testing.T) {
	emb := &mockEmbedder{dims: 32}
	e, err := NewLocalEngine(emb, "")
	if err != nil {
		t.Fatalf("NewLocalEngine: %v", err)
	}
	seed(t, e, emb)

	hits, err := e.Search(context.Background(), Query{Mode: ModeText, Text: "price", Size: 10, Filter: Filter{OwnerID: "42"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].Chunk.ChunkID != 10000 {
		t.Errorf("chunk = %d, want 10000", hits[0].Chunk.ChunkID)
	}
}

func TestLocalEngine_FuzzyText(t *testing.T) {
	emb := &mockEmbedder{dims: 32}
	e, _ := NewLocalEngine(emb, "")
	seed(t, e, emb)

	hits, err := e.Search(context.Background(), Query{Mode: ModeText, Text: "partys", Size: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 || hits[0].Chunk.ChunkID != 30000 {
		t.Fatalf("fuzzy query did not find house rules: %+v", hits)
	}
}

func TestLocalEngine_VectorAndHybrid(t *testing.T) {
	emb := &mockEmbedder{dims: 32}
	e, _ := NewLocalEngine(emb, "")
	seed(t, e, emb)
	ctx := context.Background()

	q := "[pricing]\nPrice: 120 EUR per night"
	vec := emb.vector(q)

	hits, err := e.Search(ctx, Query{Mode: ModeVector, Vector: vec, Size: 2, Filter: Filter{PropertyID: int64p(7)}})
	if err != nil {
		t.Fatalf("vector search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Chunk.ChunkID != 10000 || hits[0].Score < 0.99 {
		t.Errorf("top hit = %d (%.3f), want exact match 10000", hits[0].Chunk.ChunkID, hits[0].Score)
	}
	for _, h := range hits {
		if h.Score < 0 || h.Score > 1 {
			t.Errorf("vector score %.3f outside [0,1]", h.Score)
		}
	}

	hybrid, err := e.Search(ctx, Query{Mode: ModeHybrid, Text: "price night", Vector: vec, Size: 10, Filter: Filter{OwnerID: "42"}})
	if err != nil {
		t.Fatalf("hybrid search: %v", err)
	}
	if len(hybrid) == 0 || hybrid[0].Chunk.ChunkID != 10000 {
		t.Fatalf("hybrid top hit wrong: %+v", hybrid)
	}
	for _, h := range hybrid {
		if h.Chunk.OwnerID != "42" {
			t.Errorf("hybrid returned chunk of owner %q", h.Chunk.OwnerID)
		}
	}
	if hybrid[0].Score <= hits[0].Score {
		t.Errorf("keyword clause should boost hybrid score: %.3f <= %.3f", hybrid[0].Score, hits[0].Score)
	}
}

func TestLocalEngine_VectorRequiresEmbedding(t *testing.T) {
	e, _ := NewLocalEngine(&mockEmbedder{dims: 8}, "")
	_, err := e.Search(context.Background(), Query{Mode: ModeVector, Text: "x"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
}

func TestLocalEngine_DeleteByDocument(t *testing.T) {
	emb := &mockEmbedder{dims: 32}
	e, _ := NewLocalEngine(emb, "")
	seed(t, e, emb)

	res, err := e.DeleteByDocument(context.Background(), 1)
	if err != nil {
		t.Fatalf("DeleteByDocument: %v", err)
	}
	if res.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", res.Deleted)
	}
	if e.Count() != 2 {
		t.Errorf("count = %d, want 2", e.Count())
	}

	res, err = e.DeleteByDocument(context.Background(), 1)
	if err != nil || res.Deleted != 0 {
		t.Errorf("second delete = %+v, %v", res, err)
	}
}

func TestLocalEngine_PersistAndReload(t *testing.T) {
	dir := t.TempDir()
	emb := &mockEmbedder{dims: 32}
	e, err := NewLocalEngine(emb, dir)
	if err != nil {
		t.Fatalf("NewLocalEngine: %v", err)
	}
	if err := e.EnsureIndex(context.Background(), 32); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	seed(t, e, emb)

	reloaded, err := NewLocalEngine(emb, dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Count() != 4 {
		t.Errorf("reloaded count = %d, want 4", reloaded.Count())
	}
	if err := reloaded.EnsureIndex(context.Background(), 64); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("dimension mismatch err = %v, want configuration error", err)
	}

	hits, err := reloaded.Search(context.Background(), Query{Mode: ModeVector, Vector: emb.vector("No parties"), Size: 1})
	if err != nil || len(hits) != 1 {
		t.Fatalf("search after reload: %v, %d hits", err, len(hits))
	}
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b  string
		limit int
		want  int
	}{
		{"party", "party", 2, 0},
		{"partys", "parties", 2, 2},
		{"wifi", "wiif", 1, 2},
		{"prix", "price", 1, 2},
		{"café", "cafe", 1, 1},
	}
	for _, tt := range tests {
		if got := editDistance(tt.a, tt.b, tt.limit); got != tt.want {
			t.Errorf("editDistance(%q, %q, %d) = %d, want %d", tt.a, tt.b, tt.limit, got, tt.want)
		}
	}
}
