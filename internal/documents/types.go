// Package documents tracks ingested documents and their lifecycle.
package documents

import "time"

// Scope is the tenant-isolation level of a document and of a retrieval.
type Scope string

const (
	ScopeProperty Scope = "property"
	ScopeOwner    Scope = "owner"
	ScopeGlobal   Scope = "global"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeProperty, ScopeOwner, ScopeGlobal:
		return true
	}
	return false
}

// RequiresOwner reports whether retrieval in this scope needs an owner id.
func (s Scope) RequiresOwner() bool {
	return s == ScopeProperty || s == ScopeOwner
}

// Status is a document's position in the ingestion lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// transitions lists the only allowed status changes. Completed and failed
// are terminal; a failed document is re-ingested as a new document.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether from -> to is an allowed lifecycle step.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Document is the metadata record of one ingested document.
type Document struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Source       string    `json:"source,omitempty"`
	Scope        Scope     `json:"kb_scope"`
	OwnerID      string    `json:"owner_id,omitempty"`
	PropertyID   *int64    `json:"property_id,omitempty"`
	Status       Status    `json:"status"`
	Error        string    `json:"error,omitempty"`
	ChunkCount   int       `json:"chunk_count"`
	CaptureRatio float64   `json:"capture_ratio"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Outcome carries the result fields recorded with a terminal transition.
type Outcome struct {
	ChunkCount   int
	CaptureRatio float64
	Error        string
}

// ListFilter controls which documents are returned by List.
type ListFilter struct {
	OwnerID    string
	PropertyID *int64
	Status     Status
	Limit      int
	Offset     int
}
