package embeddings

import (
	"context"
	"os"

	"golang.org/x/time/rate"

	"github.com/ziadkadry99/hostkb/internal/apperr"
)

// New creates an Embedder for the named provider. The OpenAI provider reads
// its key from OPENAI_API_KEY; ollama falls back to OLLAMA_HOST when baseURL
// is empty.
func New(provider, model string, dimensions int, baseURL string) (Embedder, error) {
	switch provider {
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, apperr.Configuration("OPENAI_API_KEY", "environment variable is required for openai embeddings")
		}
		return NewOpenAIEmbedder(key, model, dimensions, baseURL), nil
	case "ollama":
		if baseURL == "" {
			baseURL = os.Getenv("OLLAMA_HOST")
		}
		return NewOllamaEmbedder(model, dimensions, baseURL), nil
	default:
		return nil, apperr.Configuration("embedding.provider", "unsupported embedding provider %q", provider)
	}
}

// RateLimited wraps an Embedder so that at most requestsPerMinute calls
// reach the provider. A non-positive limit disables limiting.
func RateLimited(e Embedder, requestsPerMinute int) Embedder {
	if requestsPerMinute <= 0 {
		return e
	}
	return &rateLimited{
		Embedder: e,
		limiter:  rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60), requestsPerMinute),
	}
}

type rateLimited struct {
	Embedder
	limiter *rate.Limiter
}

func (r *rateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.Embedder.Embed(ctx, texts)
}
