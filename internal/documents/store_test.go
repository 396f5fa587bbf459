package documents

import (
	"context"
	"errors"
	"testing"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func int64p(v int64) *int64 { return &v }

func TestCreateAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc, err := store.Create(ctx, Document{Title: "Villa Azur", OwnerID: "42", PropertyID: int64p(7)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.ID == 0 {
		t.Fatal("expected an id")
	}
	if doc.Status != StatusPending {
		t.Errorf("Status = %q, want pending", doc.Status)
	}
	if doc.Scope != ScopeProperty {
		t.Errorf("Scope = %q, want property", doc.Scope)
	}
	if doc.PropertyID == nil || *doc.PropertyID != 7 {
		t.Errorf("PropertyID = %v, want 7", doc.PropertyID)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}

	if _, err := store.Get(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get(999) err = %v, want not found", err)
	}
}

func TestCreateRequiresOwnerForScopedDocuments(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, Document{Title: "x", Scope: ScopeOwner}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
	if _, err := store.Create(ctx, Document{Title: "x", Scope: "tenant"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation error", err)
	}
	if _, err := store.Create(ctx, Document{Title: "faq", Scope: ScopeGlobal}); err != nil {
		t.Errorf("global document without owner: %v", err)
	}
}

func TestTransitionLifecycle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc, _ := store.Create(ctx, Document{Title: "Villa", OwnerID: "42"})

	if _, err := store.Transition(ctx, doc.ID, StatusCompleted, Outcome{}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("pending->completed err = %v, want validation error", err)
	}

	if _, err := store.Transition(ctx, doc.ID, StatusProcessing, Outcome{}); err != nil {
		t.Fatalf("pending->processing: %v", err)
	}
	done, err := store.Transition(ctx, doc.ID, StatusCompleted, Outcome{ChunkCount: 3, CaptureRatio: 0.97})
	if err != nil {
		t.Fatalf("processing->completed: %v", err)
	}
	if done.ChunkCount != 3 || done.CaptureRatio != 0.97 {
		t.Errorf("outcome not recorded: %+v", done)
	}

	for _, to := range []Status{StatusPending, StatusProcessing, StatusFailed} {
		if _, err := store.Transition(ctx, doc.ID, to, Outcome{}); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("completed->%s err = %v, want validation error", to, err)
		}
	}
}

func TestTransitionFailedIsTerminal(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	doc, _ := store.Create(ctx, Document{Title: "Villa", OwnerID: "42"})
	store.Transition(ctx, doc.ID, StatusProcessing, Outcome{})
	failed, err := store.Transition(ctx, doc.ID, StatusFailed, Outcome{Error: "embedding unavailable"})
	if err != nil {
		t.Fatalf("processing->failed: %v", err)
	}
	if failed.Error != "embedding unavailable" {
		t.Errorf("Error = %q", failed.Error)
	}
	if !failed.Status.Terminal() {
		t.Error("failed should be terminal")
	}
	if _, err := store.Transition(ctx, doc.ID, StatusProcessing, Outcome{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("failed->processing err = %v, want validation error", err)
	}
}

func TestListAndDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	store.Create(ctx, Document{Title: "a", OwnerID: "42", PropertyID: int64p(1)})
	store.Create(ctx, Document{Title: "b", OwnerID: "42", PropertyID: int64p(2)})
	c, _ := store.Create(ctx, Document{Title: "c", OwnerID: "99"})

	docs, err := store.List(ctx, ListFilter{OwnerID: "42"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 || docs[0].Title != "b" {
		t.Errorf("unexpected list: %+v", docs)
	}

	docs, _ = store.List(ctx, ListFilter{PropertyID: int64p(1)})
	if len(docs) != 1 || docs[0].Title != "a" {
		t.Errorf("property filter: %+v", docs)
	}

	if err := store.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, c.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want not found", err)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusFailed, false},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusPending, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
