package indexer

import (
	"time"

	"github.com/ziadkadry99/hostkb/internal/documents"
)

// IngestRequest is one document to add to the knowledge base.
type IngestRequest struct {
	Title      string          `json:"title"`
	Source     string          `json:"source,omitempty"`
	Text       string          `json:"text"`
	Scope      documents.Scope `json:"kb_scope,omitempty"`
	OwnerID    string          `json:"owner_id,omitempty"`
	PropertyID *int64          `json:"property_id,omitempty"`
}

// IngestResult summarizes one ingestion.
type IngestResult struct {
	Document     *documents.Document `json:"document"`
	Chunks       int                 `json:"chunks"`
	CaptureRatio float64             `json:"capture_ratio"`
	LowCapture   bool                `json:"low_capture,omitempty"`
	Duration     time.Duration       `json:"duration"`
}

// BatchResult collects the outcome of IngestAll.
type BatchResult struct {
	Results []IngestResult
	Errors  []error
}

// ProgressFunc is called during batch processing to report progress.
type ProgressFunc func(processed int, total int, current string)
