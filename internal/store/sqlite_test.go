package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/parcel"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "zoning.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func squareRecord(id model.ParcelID, name, zoningType string, x float64) ParcelRecord {
	poly := geom.NewPolygonFlat(geom.XY, []float64{x, 0, x + 1, 0, x + 1, 1, x, 1, x, 0}, []int{10})
	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	_ = mp.Push(poly)
	return ParcelRecord{
		ID:             id,
		Name:           name,
		MailingAddress: name + " Rd",
		ZoningType:     model.ZoningPtr(zoningType),
		Geometry:       mp,
		Area:           float64(id),
	}
}

func seed(t *testing.T, st *SQLiteStore) {
	t.Helper()
	n, err := st.ImportParcels(context.Background(), []ParcelRecord{
		squareRecord(1, "One", "Residential", 0),
		squareRecord(2, "Two", "Commercial", 2),
		squareRecord(3, "Three", "", 4),
	})
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

func TestSQLite_ImportAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	seed(t, st)

	parcels, err := st.ListParcels(context.Background())
	require.NoError(t, err)
	require.Len(t, parcels, 3)

	assert.Equal(t, "One", parcels[0].Name)
	assert.Equal(t, "One Rd", parcels[0].MailingAddress)
	assert.Equal(t, "Residential", parcels[0].Zoning())
	assert.InDelta(t, 1.0, parcels[0].Area, 1e-9)
	assert.False(t, parcels[2].HasZoning())

	g, err := parcel.ParseGeometry(parcels[1].Geometry)
	require.NoError(t, err)
	assert.IsType(t, &geom.MultiPolygon{}, g)
}

func TestSQLite_ImportReplacesExisting(t *testing.T) {
	st := newTestSQLiteStore(t)
	seed(t, st)

	_, err := st.ImportParcels(context.Background(), []ParcelRecord{squareRecord(2, "Two B", "Industrial", 2)})
	require.NoError(t, err)

	parcels, err := st.ListParcels(context.Background())
	require.NoError(t, err)
	require.Len(t, parcels, 3)
	assert.Equal(t, "Two B", parcels[1].Name)
	assert.Equal(t, "Industrial", parcels[1].Zoning())
}

func TestSQLite_UpdateZoning(t *testing.T) {
	st := newTestSQLiteStore(t)
	seed(t, st)
	ctx := context.Background()

	require.NoError(t, st.UpdateZoning(ctx, []model.ParcelID{3, 1}, "Commercial"))

	parcels, err := st.ListParcels(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Commercial", parcels[0].Zoning())
	assert.Equal(t, "Commercial", parcels[1].Zoning())
	assert.Equal(t, "Commercial", parcels[2].Zoning())

	// A second update overrides the first.
	require.NoError(t, st.UpdateZoning(ctx, []model.ParcelID{1}, "Agricultural"))
	parcels, err = st.ListParcels(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Agricultural", parcels[0].Zoning())

	entries, err := st.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ActionZoneUpdate, entries[1].Action)
	assert.Equal(t, "Updated 2 parcels to Commercial zoning", entries[1].Description)
	assert.Equal(t, []model.ParcelID{1, 3}, entries[1].ParcelIDs)
	assert.NotEmpty(t, entries[1].ID)
}

func TestSQLite_UpdateZoning_MissingParcelIsAtomic(t *testing.T) {
	st := newTestSQLiteStore(t)
	seed(t, st)
	ctx := context.Background()

	err := st.UpdateZoning(ctx, []model.ParcelID{1, 42}, "Industrial")
	require.ErrorIs(t, err, ErrParcelNotFound)

	parcels, err := st.ListParcels(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Residential", parcels[0].Zoning())

	entries, err := st.ListAudit(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSQLite_UpdateZoning_Invalid(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.ErrorIs(t, st.UpdateZoning(context.Background(), nil, "Residential"), ErrInvalidZoning)
	assert.ErrorIs(t, st.UpdateZoning(context.Background(), []model.ParcelID{1}, ""), ErrInvalidZoning)
}

func TestSQLite_ImportEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.ImportParcels(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_NilGeometry(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.ImportParcels(context.Background(), []ParcelRecord{{ID: 9, Name: "Bare"}})
	require.NoError(t, err)

	parcels, err := st.ListParcels(context.Background())
	require.NoError(t, err)
	require.Len(t, parcels, 1)
	assert.Empty(t, parcels[0].Geometry)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestOpen_SQLite(t *testing.T) {
	st, err := Open(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "open.db"), nil)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
}
