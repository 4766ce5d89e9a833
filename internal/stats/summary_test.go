package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/zoning-cli/internal/model"
)

func parcels() []model.Parcel {
	return []model.Parcel{
		{ID: 1, ZoningType: model.ZoningPtr("Residential"), Area: 1.0},
		{ID: 2, ZoningType: model.ZoningPtr("Commercial"), Area: 2.0},
		{ID: 3, Area: 0.5},
		{ID: 4, ZoningType: model.ZoningPtr("Residential"), Area: 3.0},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(parcels())

	assert.Equal(t, 4, s.TotalCount)
	assert.InDelta(t, 6.5, s.TotalArea, 1e-9)
	assert.Equal(t, map[string]int{"Residential": 2, "Commercial": 1, "Unzoned": 1}, s.CountByZoningType)
	assert.InDelta(t, 4.0, s.AreaByZoningType["Residential"], 1e-9)
	assert.InDelta(t, 0.5, s.AreaByZoningType["Unzoned"], 1e-9)
}

func TestCompute(t *testing.T) {
	s := Compute(parcels(), []model.ParcelID{1, 3, 99})

	assert.Equal(t, 2, s.TotalCount)
	assert.InDelta(t, 1.5, s.TotalArea, 1e-9)
	assert.Equal(t, map[string]int{"Residential": 1, "Unzoned": 1}, s.CountByZoningType)
}

func TestCompute_EmptyInput(t *testing.T) {
	assert.Equal(t, model.EmptyStats(), Compute(parcels(), nil))
	assert.Equal(t, model.EmptyStats(), Compute(nil, []model.ParcelID{1}))
}

func TestSimulate(t *testing.T) {
	all := parcels()
	s := Simulate(all, []model.ParcelID{2, 3}, "Industrial")

	assert.Equal(t, 4, s.TotalCount)
	assert.Equal(t, map[string]int{"Residential": 2, "Industrial": 2}, s.CountByZoningType)
	assert.InDelta(t, 2.5, s.AreaByZoningType["Industrial"], 1e-9)

	// The input slice is not mutated.
	assert.Equal(t, "Commercial", all[1].Zoning())
	assert.Nil(t, all[2].ZoningType)
}

func TestSimulate_EmptyInput(t *testing.T) {
	assert.Equal(t, model.EmptyStats(), Simulate(parcels(), nil, "Industrial"))
	assert.Equal(t, model.EmptyStats(), Simulate(parcels(), []model.ParcelID{1}, ""))
}
