package properties

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/hostkb/internal/apperr"
	"github.com/ziadkadry99/hostkb/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func float(v float64) *float64 { return &v }

func TestUpsertAndGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	p := Property{ID: 7, OwnerID: "42", Name: "Villa Azur", City: "Nice", Latitude: float(43.7), Longitude: float(7.26), MaxGuests: 6, NightlyRate: 150}
	require.NoError(t, s.Upsert(ctx, p))

	got, err := s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Villa Azur", got.Name)
	assert.Equal(t, "EUR", got.Currency)
	assert.True(t, got.HasLocation())

	p.NightlyRate = 180
	p.Latitude = nil
	require.NoError(t, s.Upsert(ctx, p))
	got, err = s.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 180.0, got.NightlyRate)
	assert.False(t, got.HasLocation())
}

func TestGetMissing(t *testing.T) {
	_, err := setupStore(t).Get(context.Background(), 99)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpsertValidates(t *testing.T) {
	s := setupStore(t)
	for _, p := range []Property{
		{OwnerID: "42", Name: "x"},
		{ID: 1, Name: "x"},
		{ID: 1, OwnerID: "42"},
	} {
		assert.True(t, errors.Is(s.Upsert(context.Background(), p), apperr.ErrValidation), "%+v", p)
	}
}

func TestListByOwner(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	n, err := s.Import(ctx, []Property{
		{ID: 2, OwnerID: "42", Name: "Studio"},
		{ID: 1, OwnerID: "42", Name: "Villa"},
		{ID: 3, OwnerID: "99", Name: "Loft"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mine, err := s.List(ctx, "42")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, int64(1), mine[0].ID)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "properties.yml")
	require.NoError(t, os.WriteFile(path, []byte(`properties:
  - id: 7
    owner_id: "42"
    name: Villa Azur
    latitude: 43.7
    longitude: 7.26
    check_in: "16:00"
`), 0o644))

	props, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, props, 1)
	assert.Equal(t, "42", props[0].OwnerID)
	assert.Equal(t, "16:00", props[0].CheckIn)
	require.NotNil(t, props[0].Latitude)
	assert.InDelta(t, 43.7, *props[0].Latitude, 1e-9)
}
