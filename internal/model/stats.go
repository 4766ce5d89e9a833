package model

// StatsSummary aggregates a set of parcels by zoning type.
type StatsSummary struct {
	TotalCount        int                `json:"totalCount"`
	TotalArea         float64            `json:"totalArea"`
	CountByZoningType map[string]int     `json:"countByZoningType"`
	AreaByZoningType  map[string]float64 `json:"areaByZoningType"`
}

// EmptyStats returns the all-zero summary returned for empty input.
func EmptyStats() StatsSummary {
	return StatsSummary{
		CountByZoningType: map[string]int{},
		AreaByZoningType:  map[string]float64{},
	}
}

// ZoningUpdateRequest is the wire body for zoning updates and simulations.
type ZoningUpdateRequest struct {
	ParcelIDs  []ParcelID `json:"parcelIds"`
	ZoningType string     `json:"zoningType"`
}
