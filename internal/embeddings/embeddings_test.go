package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ziadkadry99/hostkb/internal/apperr"
)

type stubEmbedder struct {
	dims int
	vec  []float32
	err  error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = append([]float32(nil), s.vec...)
	}
	return out, nil
}
func (s *stubEmbedder) Dimensions() int { return s.dims }
func (s *stubEmbedder) Name() string    { return "stub" }

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if math.Abs(norm(v)-1) > 1e-6 {
		t.Errorf("norm = %f, want 1", norm(v))
	}
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("got %v, want [0.6 0.8]", v)
	}
	zero := Normalize([]float32{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector changed: %v", zero)
	}
}

func TestNormalizedEnforcesContract(t *testing.T) {
	e := Normalized(&stubEmbedder{dims: 2, vec: []float32{10, 0}})
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 {
		t.Errorf("unexpected vectors: %v", vecs)
	}

	bad := Normalized(&stubEmbedder{dims: 3, vec: []float32{1, 0}})
	if _, err := bad.Embed(context.Background(), []string{"a"}); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("dimension mismatch error = %v, want configuration error", err)
	}

	down := Normalized(&stubEmbedder{dims: 2, err: errors.New("dial tcp: refused")})
	if _, err := down.Embed(context.Background(), []string{"a"}); !errors.Is(err, apperr.ErrProviderUnavailable) {
		t.Errorf("provider error = %v, want provider unavailable", err)
	}
}

func TestHandleBuildsOnce(t *testing.T) {
	var builds int32
	h := NewHandle(func() (Embedder, error) {
		atomic.AddInt32(&builds, 1)
		return &stubEmbedder{dims: 2, vec: []float32{1, 1}}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := EmbedOne(context.Background(), h, "hello"); err != nil {
				t.Errorf("embed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&builds); got != 1 {
		t.Errorf("build called %d times, want 1", got)
	}
	if h.Dimensions() != 2 {
		t.Errorf("dimensions = %d, want 2", h.Dimensions())
	}
}

func TestHandleBuildError(t *testing.T) {
	h := NewHandle(func() (Embedder, error) {
		return nil, apperr.Configuration("embedding.provider", "missing")
	})
	if _, err := h.Embed(context.Background(), []string{"x"}); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("err = %v, want configuration error", err)
	}
	if h.Name() != "unavailable" {
		t.Errorf("name = %q", h.Name())
	}
}

func TestOllamaEmbedderBatches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		resp := ollamaEmbedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0, 2, 0})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := Normalized(NewOllamaEmbedder("all-minilm", 3, srv.URL))
	vecs, err := e.Embed(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vecs) != 3 || math.Abs(float64(vecs[2][1])-1) > 1e-6 {
		t.Errorf("unexpected vectors %v", vecs)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestNewUnsupportedProvider(t *testing.T) {
	if _, err := New("word2vec", "", 384, ""); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("err = %v, want configuration error", err)
	}
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := New("openai", "", 384, ""); !errors.Is(err, apperr.ErrConfiguration) {
		t.Errorf("missing key err = %v, want configuration error", err)
	}
}
