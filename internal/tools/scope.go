package tools

import (
	"context"

	"github.com/ziadkadry99/hostkb/internal/documents"
)

// Scope is the tenant a conversation runs for. Tools read it from the
// context so the model can never widen it through arguments.
type Scope struct {
	OwnerID    string
	PropertyID *int64
	KBScope    documents.Scope
}

type scopeKey struct{}

// WithScope returns a context carrying s.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope carried by ctx, or the zero Scope.
func ScopeFrom(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey{}).(Scope)
	return s
}
