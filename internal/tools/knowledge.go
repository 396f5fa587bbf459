package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/retriever"
)

const maxSearchResults = 20

// Searcher runs retrieval; *retriever.Retriever satisfies it.
type Searcher interface {
	Retrieve(ctx context.Context, query string, opts retriever.Options) (*retriever.Response, error)
}

// KnowledgeSearch searches the knowledge base within the caller's scope.
type KnowledgeSearch struct {
	searcher Searcher
	defaults retriever.Options
}

// NewKnowledgeSearch creates the knowledge_search tool. defaults supplies
// the search type, thresholds and scope used when the context has none.
func NewKnowledgeSearch(s Searcher, defaults retriever.Options) *KnowledgeSearch {
	return &KnowledgeSearch{searcher: s, defaults: defaults}
}

var knowledgeSearchTool = mcp.NewTool("knowledge_search",
	mcp.WithDescription("Search the property knowledge base (listings, house rules, pricing, owner handbooks) and return the most relevant passages."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("What to look for, in natural language"),
	),
	mcp.WithNumber("top_k",
		mcp.Description("Maximum number of passages to return (default 5)"),
		mcp.Min(1),
		mcp.Max(maxSearchResults),
	),
)

func (k *KnowledgeSearch) Definition() mcp.Tool { return knowledgeSearchTool }

type knowledgeSearchArgs struct {
	Query string      `json:"query"`
	TopK  wholeNumber `json:"top_k"`
}

func (k *KnowledgeSearch) Invoke(ctx context.Context, raw json.RawMessage) (string, error) {
	var args knowledgeSearchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", apperr.Validation("query", "is required")
	}
	if args.TopK < 0 || args.TopK > maxSearchResults {
		return "", apperr.Validation("top_k", "must be between 1 and %d", maxSearchResults)
	}

	opts := k.defaults
	if args.TopK > 0 {
		opts.TopK = int(args.TopK)
	}
	scope := ScopeFrom(ctx)
	opts.OwnerID = scope.OwnerID
	opts.PropertyID = scope.PropertyID
	if scope.KBScope != "" {
		opts.Scope = scope.KBScope
	}

	resp, err := k.searcher.Retrieve(ctx, args.Query, opts)
	if err != nil {
		return "", err
	}
	return retriever.FormatResults(resp.Chunks), nil
}
