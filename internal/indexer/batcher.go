package indexer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/hostkb/internal/embeddings"
)

const defaultBatchSize = 32

// Batcher embeds texts in fixed-size batches with bounded parallelism.
type Batcher struct {
	embedder    embeddings.Embedder
	batchSize   int
	concurrency int
}

// NewBatcher creates a Batcher. Non-positive sizes fall back to defaults.
func NewBatcher(embedder embeddings.Embedder, batchSize, concurrency int) *Batcher {
	if batchSize < 1 {
		batchSize = defaultBatchSize
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Batcher{embedder: embedder, batchSize: batchSize, concurrency: concurrency}
}

// Embed returns one vector per text, in input order. The first failing batch
// cancels the rest.
func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := b.embedder.Embed(ctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			if len(vecs) != end-start {
				return errCountMismatch(len(vecs), end-start)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func errCountMismatch(got, want int) error {
	return fmt.Errorf("embedder returned %d vectors for %d texts", got, want)
}
