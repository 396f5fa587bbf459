package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/db"
)

// Store provides lifecycle-aware persistence for documents.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts doc in the pending state and returns it with its id.
func (s *Store) Create(ctx context.Context, doc Document) (*Document, error) {
	if doc.Scope == "" {
		doc.Scope = ScopeProperty
	}
	if !doc.Scope.Valid() {
		return nil, apperr.Validation("kb_scope", "unknown scope %q", doc.Scope)
	}
	if doc.Scope.RequiresOwner() && doc.OwnerID == "" {
		return nil, apperr.Validation("owner_id", "is required for %s scope", doc.Scope)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (title, source, kb_scope, owner_id, property_id, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		doc.Title, doc.Source, string(doc.Scope), doc.OwnerID, nullInt(doc.PropertyID), string(StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading document id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns a document by id.
func (s *Store) Get(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("document", id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %d: %w", id, err)
	}
	return d, nil
}

// List returns documents matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.OwnerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.PropertyID != nil {
		clauses = append(clauses, "property_id = ?")
		args = append(args, *filter.PropertyID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := selectColumns
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// Transition moves a document to status to. Only pending->processing and
// processing->completed|failed are accepted; anything else is a validation
// error. out is recorded with the new status.
func (s *Store) Transition(ctx context.Context, id int64, to Status, out Outcome) (*Document, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur.Status, to) {
		return nil, apperr.Validation("status", "document %d cannot move from %s to %s", id, cur.Status, to)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, error = ?, chunk_count = ?, capture_ratio = ?, updated_at = datetime('now')
		WHERE id = ? AND status = ?`,
		string(to), out.Error, out.ChunkCount, out.CaptureRatio, id, string(cur.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("updating document %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.Validation("status", "document %d changed state concurrently", id)
	}
	return s.Get(ctx, id)
}

// Delete removes the document record.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("document", id)
	}
	return nil
}

const selectColumns = `SELECT id, title, source, kb_scope, owner_id, property_id, status, error,
	chunk_count, capture_ratio, created_at, updated_at FROM documents`

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*Document, error) {
	var (
		d                Document
		scope, status    string
		propertyID       sql.NullInt64
		created, updated string
	)
	err := sc.Scan(&d.ID, &d.Title, &d.Source, &scope, &d.OwnerID, &propertyID, &status, &d.Error,
		&d.ChunkCount, &d.CaptureRatio, &created, &updated)
	if err != nil {
		return nil, err
	}
	d.Scope = Scope(scope)
	d.Status = Status(status)
	if propertyID.Valid {
		v := propertyID.Int64
		d.PropertyID = &v
	}
	d.CreatedAt = parseTime(created)
	d.UpdatedAt = parseTime(updated)
	return &d, nil
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.DateTime, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
