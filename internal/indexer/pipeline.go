// Package indexer chunks, embeds and indexes documents, and tracks each
// document through its lifecycle while doing so.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/chunker"
	"github.com/ziadkadry99/hostkb/internal/documents"
	"github.com/ziadkadry99/hostkb/internal/embeddings"
	"github.com/ziadkadry99/hostkb/internal/searchengine"
)

// DefaultCaptureWarnRatio is the capture ratio below which a quality warning
// is logged.
const DefaultCaptureWarnRatio = 0.9

// Options tunes a Pipeline. Zero values select defaults.
type Options struct {
	BatchSize        int
	Concurrency      int
	CaptureWarnRatio float64
}

// Pipeline orchestrates ingestion: chunk -> embed -> index, recording the
// document's lifecycle in the documents store.
type Pipeline struct {
	docs     *documents.Store
	chunker  *chunker.Chunker
	embedder embeddings.Embedder
	engine   searchengine.Engine
	batcher  *Batcher
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// NewPipeline creates a new Pipeline.
func NewPipeline(
	docs *documents.Store,
	ch *chunker.Chunker,
	embedder embeddings.Embedder,
	engine searchengine.Engine,
	opts Options,
	logger *slog.Logger,
) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.CaptureWarnRatio <= 0 {
		opts.CaptureWarnRatio = DefaultCaptureWarnRatio
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		docs:     docs,
		chunker:  ch,
		embedder: embedder,
		engine:   engine,
		batcher:  NewBatcher(embedder, opts.BatchSize, opts.Concurrency),
		opts:     opts,
		logger:   logger.With("component", "indexer"),
		now:      time.Now,
	}
}

// Prepare makes sure the search index exists with the embedder's dimension.
func (p *Pipeline) Prepare(ctx context.Context) error {
	if err := p.engine.EnsureIndex(ctx, p.embedder.Dimensions()); err != nil {
		return fmt.Errorf("ensure index: %w", err)
	}
	return nil
}

// Ingest stores req as a new document and indexes its chunks. Any failure
// after the document is created leaves it in the failed state.
func (p *Pipeline) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	start := p.now()
	if strings.TrimSpace(req.Text) == "" {
		return nil, apperr.Validation("text", "must not be empty")
	}

	doc, err := p.docs.Create(ctx, documents.Document{
		Title:      req.Title,
		Source:     req.Source,
		Scope:      req.Scope,
		OwnerID:    req.OwnerID,
		PropertyID: req.PropertyID,
	})
	if err != nil {
		return nil, err
	}
	log := p.logger.With("document_id", doc.ID, "owner_id", doc.OwnerID)

	if _, err := p.docs.Transition(ctx, doc.ID, documents.StatusProcessing, documents.Outcome{}); err != nil {
		return nil, err
	}

	text := chunker.NormalizeNewlines(req.Text)
	pieces := p.chunker.Split(text)
	ratio := chunker.CaptureRatio(text, pieces)
	result := &IngestResult{Chunks: len(pieces), CaptureRatio: ratio}
	if ratio < p.opts.CaptureWarnRatio {
		result.LowCapture = true
		log.Warn("low chunk capture ratio", "ratio", ratio, "threshold", p.opts.CaptureWarnRatio)
	}

	if err := p.index(ctx, doc, pieces); err != nil {
		log.Error("ingestion failed", "error", err)
		// Record the failure even if ctx is what failed.
		failed, terr := p.docs.Transition(context.WithoutCancel(ctx), doc.ID, documents.StatusFailed,
			documents.Outcome{Error: err.Error(), CaptureRatio: ratio})
		if terr != nil {
			log.Error("recording failure", "error", terr)
		}
		if failed != nil {
			result.Document = failed
		}
		return result, err
	}

	done, err := p.docs.Transition(ctx, doc.ID, documents.StatusCompleted,
		documents.Outcome{ChunkCount: len(pieces), CaptureRatio: ratio})
	if err != nil {
		return nil, err
	}
	result.Document = done
	result.Duration = time.Since(start)
	log.Info("document indexed", "chunks", len(pieces), "ratio", ratio, "duration", result.Duration)
	return result, nil
}

func (p *Pipeline) index(ctx context.Context, doc *documents.Document, pieces []chunker.Piece) error {
	if len(pieces) > MaxChunksPerDocument {
		return apperr.Validation("text", "document produces %d chunks, at most %d are supported", len(pieces), MaxChunksPerDocument)
	}

	texts := make([]string, len(pieces))
	for i, piece := range pieces {
		texts[i] = piece.Text()
	}
	vectors, err := p.batcher.Embed(ctx, texts)
	if err != nil {
		return apperr.Unavailable("embedding", err)
	}

	chunks, err := BuildChunks(doc, pieces, vectors, p.now().UTC())
	if err != nil {
		return err
	}
	if err := p.engine.Index(ctx, chunks); err != nil {
		// A partial bulk write must not leave orphan chunks behind.
		if _, derr := p.engine.DeleteByDocument(context.WithoutCancel(ctx), doc.ID); derr != nil {
			p.logger.Warn("cleanup after failed index", "document_id", doc.ID, "error", derr)
		}
		return apperr.Unavailable(p.engine.Name(), err)
	}
	return nil
}

// IngestAll ingests reqs with bounded parallelism. A failing document does
// not stop the others.
func (p *Pipeline) IngestAll(ctx context.Context, reqs []IngestRequest, onProgress ProgressFunc) *BatchResult {
	var (
		mu        sync.Mutex
		processed int
		result    = &BatchResult{}
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, req := range reqs {
		g.Go(func() error {
			res, err := p.Ingest(ctx, req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("ingest %s: %w", req.Title, err))
			} else {
				result.Results = append(result.Results, *res)
			}
			processed++
			if onProgress != nil {
				onProgress(processed, len(reqs), req.Title)
			}
			return nil
		})
	}
	g.Wait()
	return result
}

// DeleteResult reports a document deletion.
type DeleteResult struct {
	DocumentID int64    `json:"document_id"`
	Deleted    int      `json:"deleted"`
	Failures   []string `json:"failures,omitempty"`
}

// Delete removes a document's chunks from the search engine and, when no
// chunk failed to delete, the document record itself.
func (p *Pipeline) Delete(ctx context.Context, documentID int64) (*DeleteResult, error) {
	if _, err := p.docs.Get(ctx, documentID); err != nil {
		return nil, err
	}

	res, err := p.engine.DeleteByDocument(ctx, documentID)
	out := &DeleteResult{DocumentID: documentID, Deleted: res.Deleted, Failures: res.Failures}
	if err != nil {
		return out, fmt.Errorf("delete chunks of document %d: %w", documentID, err)
	}
	if len(out.Failures) > 0 {
		p.logger.Warn("partial chunk deletion", "document_id", documentID, "failures", len(out.Failures))
		return out, nil
	}
	if err := p.docs.Delete(ctx, documentID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return out, err
	}
	p.logger.Info("document deleted", "document_id", documentID, "chunks", out.Deleted)
	return out, nil
}
