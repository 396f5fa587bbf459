package tools

import (
	"log/slog"
	"time"

	"github.com/ziadkadry99/hostkb/internal/retriever"
)

// Deps are the collaborators of the built-in tools. Tools whose
// collaborator is missing are not registered.
type Deps struct {
	Searcher         Searcher
	SearchDefaults   retriever.Options
	Properties       PropertyFinder
	WebSearchURL     string
	WebSearchKey     string
	WebSearchTimeout time.Duration
}

// NewDefaultRegistry registers every built-in tool that deps can support.
func NewDefaultRegistry(deps Deps, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry(logger)

	var list []Tool
	if deps.Searcher != nil {
		list = append(list, NewKnowledgeSearch(deps.Searcher, deps.SearchDefaults))
	}
	if deps.Properties != nil {
		list = append(list, NewPropertyLookup(deps.Properties))
	}
	list = append(list, NewDistance(deps.Properties))
	if deps.WebSearchURL != "" {
		list = append(list, NewWebSearch(deps.WebSearchURL, deps.WebSearchKey, deps.WebSearchTimeout))
	}

	for _, t := range list {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}
