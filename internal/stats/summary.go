// Package stats aggregates parcel statistics and tracks the latest statistics
// for a changing selection.
package stats

import (
	"github.com/sells-group/zoning-cli/internal/model"
)

// Summarize aggregates parcels by zoning type. Parcels without zoning are
// grouped under model.UnzonedLabel.
func Summarize(parcels []model.Parcel) model.StatsSummary {
	s := model.EmptyStats()
	for _, p := range parcels {
		key := model.UnzonedLabel
		if p.HasZoning() {
			key = p.Zoning()
		}
		s.TotalCount++
		s.TotalArea += p.Area
		s.CountByZoningType[key]++
		s.AreaByZoningType[key] += p.Area
	}
	return s
}

// Compute summarizes the parcels in all whose id is in ids. Empty input
// yields the zero summary.
func Compute(all []model.Parcel, ids []model.ParcelID) model.StatsSummary {
	if len(ids) == 0 || len(all) == 0 {
		return model.EmptyStats()
	}
	want := idSet(ids)
	selected := make([]model.Parcel, 0, len(ids))
	for _, p := range all {
		if want[p.ID] {
			selected = append(selected, p)
		}
	}
	return Summarize(selected)
}

// Simulate summarizes the whole parcel set as it would look with ids re-zoned
// to zoningType. Empty ids or zoning type yields the zero summary.
func Simulate(all []model.Parcel, ids []model.ParcelID, zoningType string) model.StatsSummary {
	if len(ids) == 0 || len(all) == 0 || zoningType == "" {
		return model.EmptyStats()
	}
	want := idSet(ids)
	updated := make([]model.Parcel, len(all))
	for i, p := range all {
		if want[p.ID] {
			p = p.WithZoning(zoningType)
		}
		updated[i] = p
	}
	return Summarize(updated)
}

func idSet(ids []model.ParcelID) map[model.ParcelID]bool {
	set := make(map[model.ParcelID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
