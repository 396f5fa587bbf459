// Package retriever answers retrieval requests against the search engine:
// it validates tenant scope, builds the text, vector or hybrid query, then
// deduplicates and optionally reranks the hits.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/documents"
	"github.com/ziadkadry99/hostkb/internal/embeddings"
	"github.com/ziadkadry99/hostkb/internal/searchengine"
)

// Defaults for Options fields left at their zero value.
const (
	DefaultTopK         = 5
	DefaultMinScore     = 0.7
	DefaultMaxBoost     = 0.5
	DefaultBoostPerTerm = 0.1
)

// Options are the per-request retrieval settings.
type Options struct {
	TopK       int               `json:"top_k"`
	MinScore   float64           `json:"min_score"`
	SearchType searchengine.Mode `json:"search_type"`
	Rerank     bool              `json:"rerank"`
	OwnerID    string            `json:"owner_id,omitempty"`
	PropertyID *int64            `json:"property_id,omitempty"`
	Scope      documents.Scope   `json:"kb_scope"`
}

// DefaultOptions returns the request defaults: top 5 hybrid hits, minimum
// score 0.7, reranking on, property scope.
func DefaultOptions() Options {
	return Options{
		TopK:       DefaultTopK,
		MinScore:   DefaultMinScore,
		SearchType: searchengine.ModeHybrid,
		Rerank:     true,
		Scope:      documents.ScopeProperty,
	}
}

// Result is one retrieved chunk.
type Result struct {
	Chunk       searchengine.Chunk `json:"chunk"`
	Score       float64            `json:"score"`
	RerankScore *float64           `json:"rerank_score,omitempty"`
}

// Response is the output of Retrieve.
type Response struct {
	Chunks []Result `json:"chunks"`
	Count  int      `json:"count"`
}

// Retriever runs hybrid retrieval. It is safe for concurrent use.
type Retriever struct {
	engine       searchengine.Engine
	embedder     embeddings.Embedder
	maxBoost     float64
	boostPerTerm float64
	logger       *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithBoost overrides the rerank boost per matching term and its cap.
func WithBoost(perTerm, max float64) Option {
	return func(r *Retriever) {
		if perTerm > 0 {
			r.boostPerTerm = perTerm
		}
		if max > 0 {
			r.maxBoost = max
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Retriever.
func New(engine searchengine.Engine, embedder embeddings.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		engine:       engine,
		embedder:     embedder,
		maxBoost:     DefaultMaxBoost,
		boostPerTerm: DefaultBoostPerTerm,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "retriever")
	return r
}

// Validate checks opts and fills defaults. Scoped retrieval without an
// owner is rejected rather than answered with an empty result.
func Validate(query string, opts Options) (Options, error) {
	if strings.TrimSpace(query) == "" {
		return opts, apperr.Validation("query", "must not be empty")
	}
	if opts.Scope == "" {
		opts.Scope = documents.ScopeProperty
	}
	if !opts.Scope.Valid() {
		return opts, apperr.Validation("kb_scope", "must be one of property, owner, global")
	}
	if opts.Scope.RequiresOwner() && opts.OwnerID == "" {
		return opts, apperr.Validation("owner_id", "is required for %s scope", opts.Scope)
	}
	if opts.SearchType == "" {
		opts.SearchType = searchengine.ModeHybrid
	}
	if !opts.SearchType.Valid() {
		return opts, apperr.Validation("search_type", "must be one of text, vector, hybrid")
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MinScore < 0 {
		return opts, apperr.Validation("min_score", "must not be negative")
	}
	return opts, nil
}

// filterFor maps scope and tenant ids to engine filters. Provided ids are
// always applied, except that owner scope spans all of the owner's
// properties and ignores property_id.
func filterFor(opts Options) searchengine.Filter {
	f := searchengine.Filter{OwnerID: opts.OwnerID}
	if opts.Scope != documents.ScopeOwner {
		f.PropertyID = opts.PropertyID
	}
	return f
}

// Retrieve returns the chunks most relevant to query.
func (r *Retriever) Retrieve(ctx context.Context, query string, opts Options) (*Response, error) {
	opts, err := Validate(query, opts)
	if err != nil {
		return nil, err
	}

	q := searchengine.Query{
		Mode:   opts.SearchType,
		Text:   query,
		Filter: filterFor(opts),
		Size:   opts.TopK,
	}
	if opts.Rerank {
		// Over-fetch so the rerank step has candidates to reorder.
		q.Size = opts.TopK * 2
	}
	if opts.SearchType != searchengine.ModeText {
		vec, err := embeddings.EmbedOne(ctx, r.embedder, query)
		if err != nil {
			return nil, apperr.Unavailable("embedding", err)
		}
		q.Vector = vec
	}

	hits, err := r.engine.Search(ctx, q)
	if err != nil {
		return nil, apperr.Unavailable(r.engine.Name(), fmt.Errorf("search: %w", err))
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		if opts.SearchType != searchengine.ModeText && h.Score < opts.MinScore {
			continue
		}
		results = append(results, Result{Chunk: h.Chunk, Score: h.Score})
	}

	results = Dedupe(results)
	if opts.Rerank && len(results) > opts.TopK {
		results = Rerank(query, results, r.boostPerTerm, r.maxBoost)
	}
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	r.logger.Debug("retrieved", "search_type", opts.SearchType, "hits", len(hits), "returned", len(results))
	return &Response{Chunks: results, Count: len(results)}, nil
}
