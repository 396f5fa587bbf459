// Package embeddings turns text into fixed-length, unit-normalized vectors.
package embeddings

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ziadkadry99/hostkb/internal/apperr"
)

// DefaultDimensions is the vector size the search index is created with.
const DefaultDimensions = 384

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// Normalize scales v to unit L2 length in place and returns it.
// A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// normalizing enforces the unit-length and dimension contract on any provider.
type normalizing struct {
	Embedder
}

// Normalized wraps e so every returned vector is L2-normalized and checked
// against e.Dimensions().
func Normalized(e Embedder) Embedder {
	if _, ok := e.(normalizing); ok {
		return e
	}
	return normalizing{e}
}

func (n normalizing) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := n.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, apperr.Unavailable(n.Name(), err)
	}
	if len(vecs) != len(texts) {
		return nil, apperr.Unavailable(n.Name(), fmt.Errorf("got %d embeddings for %d texts", len(vecs), len(texts)))
	}
	for i, v := range vecs {
		if len(v) != n.Dimensions() {
			return nil, apperr.Configuration("embedding.dimensions",
				"model %s returned %d dimensions, expected %d", n.Name(), len(v), n.Dimensions())
		}
		vecs[i] = Normalize(v)
	}
	return vecs, nil
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder %s returned no vector", e.Name())
	}
	return vecs[0], nil
}

// Handle is the process-wide embedder. The provider is constructed on first
// use and shared by every caller afterwards.
type Handle struct {
	build func() (Embedder, error)

	once sync.Once
	emb  Embedder
	err  error
}

// NewHandle returns a Handle that calls build at most once.
func NewHandle(build func() (Embedder, error)) *Handle {
	return &Handle{build: build}
}

// Get returns the shared embedder, building it on the first call.
func (h *Handle) Get() (Embedder, error) {
	h.once.Do(func() {
		e, err := h.build()
		if err != nil {
			h.err = err
			return
		}
		h.emb = Normalized(e)
	})
	return h.emb, h.err
}

// Embed implements Embedder through the shared instance.
func (h *Handle) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e, err := h.Get()
	if err != nil {
		return nil, err
	}
	return e.Embed(ctx, texts)
}

// Dimensions reports the shared embedder's dimensions, or 0 if it failed to build.
func (h *Handle) Dimensions() int {
	e, err := h.Get()
	if err != nil {
		return 0
	}
	return e.Dimensions()
}

// Name reports the shared embedder's model name.
func (h *Handle) Name() string {
	e, err := h.Get()
	if err != nil {
		return "unavailable"
	}
	return e.Name()
}
