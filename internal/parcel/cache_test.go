package parcel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/zoning"
)

func TestCache_LoadStartsSession(t *testing.T) {
	c := NewCache()
	assert.Equal(t, uint64(0), c.Session())

	s1 := c.Load(fixtureParcels(), zoning.NewVocabulary(zoning.DefaultTypes))
	s2 := c.Load(fixtureParcels(), zoning.NewVocabulary(zoning.DefaultTypes))

	assert.Equal(t, uint64(1), s1)
	assert.Equal(t, uint64(2), s2)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, "Residential", c.Vocabulary().First())
}

func TestCache_GetAndContains(t *testing.T) {
	c := NewCache()
	c.Load(fixtureParcels(), zoning.NewVocabulary(nil))

	p, ok := c.Get(2)
	require.True(t, ok)
	assert.Equal(t, "Two", p.Name)
	assert.True(t, c.Contains(3))
	assert.False(t, c.Contains(99))

	_, ok = c.Get(99)
	assert.False(t, ok)
}

func TestCache_LoadKeepsBadGeometry(t *testing.T) {
	parcels := fixtureParcels()
	parcels[1].Geometry = `{"type":"Point","coordinates":[0,0]}`

	c := NewCache()
	c.Load(parcels, zoning.NewVocabulary(nil))

	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.NotNil(t, entries[0].Geometry)
	assert.Nil(t, entries[1].Geometry)
	assert.True(t, c.Contains(2))
}

func TestCache_LoadDropsDuplicateIDs(t *testing.T) {
	parcels := append(fixtureParcels(), model.Parcel{ID: 1, Name: "dup"})

	c := NewCache()
	c.Load(parcels, zoning.NewVocabulary(nil))

	assert.Equal(t, 3, c.Len())
	p, _ := c.Get(1)
	assert.Equal(t, "One", p.Name)
}

func TestCache_ApplyZoning(t *testing.T) {
	c := NewCache()
	c.Load(fixtureParcels(), zoning.NewVocabulary(nil))
	v := c.Version()

	n := c.ApplyZoning([]model.ParcelID{1, 3, 42}, "Industrial")

	assert.Equal(t, 2, n)
	assert.Greater(t, c.Version(), v)
	p1, _ := c.Get(1)
	p2, _ := c.Get(2)
	p3, _ := c.Get(3)
	assert.Equal(t, "Industrial", p1.Zoning())
	assert.Equal(t, "Commercial", p2.Zoning())
	assert.Equal(t, "Industrial", p3.Zoning())
}

func TestCache_ApplyZoningNoMatchKeepsVersion(t *testing.T) {
	c := NewCache()
	c.Load(fixtureParcels(), zoning.NewVocabulary(nil))
	v := c.Version()

	assert.Equal(t, 0, c.ApplyZoning([]model.ParcelID{42}, "Industrial"))
	assert.Equal(t, v, c.Version())
}

func TestCache_Remove(t *testing.T) {
	c := NewCache()
	c.Load(fixtureParcels(), zoning.NewVocabulary(nil))
	session := c.Session()

	assert.Equal(t, 1, c.Remove(2, 42))
	assert.False(t, c.Contains(2))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, session, c.Session())

	p, ok := c.Get(3)
	require.True(t, ok)
	assert.Equal(t, "Three", p.Name)
	assert.Equal(t, 0, c.Remove(42))
}

func TestCache_ParcelsIsCopy(t *testing.T) {
	c := NewCache()
	c.Load(fixtureParcels(), zoning.NewVocabulary(nil))

	ps := c.Parcels()
	ps[0].Name = "changed"

	p, _ := c.Get(1)
	assert.Equal(t, "One", p.Name)
}
