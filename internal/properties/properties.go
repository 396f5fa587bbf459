// Package properties is the directory of rental properties the assistant
// can look up: address, coordinates, capacity, rates and check-in times.
package properties

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/db"
)

// Property is one listing owned by a host.
type Property struct {
	ID          int64    `json:"id" yaml:"id"`
	OwnerID     string   `json:"owner_id" yaml:"owner_id"`
	Name        string   `json:"name" yaml:"name"`
	Address     string   `json:"address,omitempty" yaml:"address"`
	City        string   `json:"city,omitempty" yaml:"city"`
	Latitude    *float64 `json:"latitude,omitempty" yaml:"latitude"`
	Longitude   *float64 `json:"longitude,omitempty" yaml:"longitude"`
	Bedrooms    int      `json:"bedrooms" yaml:"bedrooms"`
	MaxGuests   int      `json:"max_guests" yaml:"max_guests"`
	NightlyRate float64  `json:"nightly_rate" yaml:"nightly_rate"`
	Currency    string   `json:"currency" yaml:"currency"`
	CheckIn     string   `json:"check_in,omitempty" yaml:"check_in"`
	CheckOut    string   `json:"check_out,omitempty" yaml:"check_out"`
}

// HasLocation reports whether both coordinates are known.
func (p Property) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Store reads and writes the properties table.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

const selectColumns = `SELECT id, owner_id, name, address, city, latitude, longitude,
	bedrooms, max_guests, nightly_rate, currency, check_in, check_out FROM properties`

// Upsert inserts or replaces a property by id.
func (s *Store) Upsert(ctx context.Context, p Property) error {
	if p.ID <= 0 {
		return apperr.Validation("id", "must be positive")
	}
	if p.OwnerID == "" {
		return apperr.Validation("owner_id", "is required")
	}
	if p.Name == "" {
		return apperr.Validation("name", "is required")
	}
	if p.Currency == "" {
		p.Currency = "EUR"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO properties (id, owner_id, name, address, city, latitude, longitude,
			bedrooms, max_guests, nightly_rate, currency, check_in, check_out)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id, name = excluded.name, address = excluded.address,
			city = excluded.city, latitude = excluded.latitude, longitude = excluded.longitude,
			bedrooms = excluded.bedrooms, max_guests = excluded.max_guests,
			nightly_rate = excluded.nightly_rate, currency = excluded.currency,
			check_in = excluded.check_in, check_out = excluded.check_out`,
		p.ID, p.OwnerID, p.Name, p.Address, p.City, nullFloat(p.Latitude), nullFloat(p.Longitude),
		p.Bedrooms, p.MaxGuests, p.NightlyRate, p.Currency, p.CheckIn, p.CheckOut,
	)
	if err != nil {
		return fmt.Errorf("upserting property %d: %w", p.ID, err)
	}
	return nil
}

// Get returns a property by id.
func (s *Store) Get(ctx context.Context, id int64) (*Property, error) {
	p, err := scanProperty(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("property", id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading property %d: %w", id, err)
	}
	return p, nil
}

// List returns the properties of an owner, or every property when ownerID
// is empty, ordered by id.
func (s *Store) List(ctx context.Context, ownerID string) ([]Property, error) {
	query := selectColumns
	var args []any
	if ownerID != "" {
		query += " WHERE owner_id = ?"
		args = append(args, ownerID)
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("listing properties: %w", err)
	}
	defer rows.Close()

	var out []Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// LoadFile reads a YAML list of properties.
func LoadFile(path string) ([]Property, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var doc struct {
		Properties []Property `yaml:"properties"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Validation("properties", "invalid YAML in %s: %v", path, err)
	}
	return doc.Properties, nil
}

// Import upserts every property, stopping at the first invalid one.
func (s *Store) Import(ctx context.Context, props []Property) (int, error) {
	for i, p := range props {
		if err := s.Upsert(ctx, p); err != nil {
			return i, err
		}
	}
	return len(props), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProperty(row scanner) (*Property, error) {
	var p Property
	var lat, lon sql.NullFloat64
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Address, &p.City, &lat, &lon,
		&p.Bedrooms, &p.MaxGuests, &p.NightlyRate, &p.Currency, &p.CheckIn, &p.CheckOut)
	if err != nil {
		return nil, err
	}
	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lon.Valid {
		p.Longitude = &lon.Float64
	}
	return &p, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
