package model

import (
	"strconv"
)

// SquareMetersPerAcre converts PostGIS geography areas to acres.
const SquareMetersPerAcre = 4046.86

// UnzonedLabel groups parcels without a zoning type in statistics.
const UnzonedLabel = "Unzoned"

// ParcelID identifies a parcel. The core treats it as opaque.
type ParcelID int64

// String implements fmt.Stringer.
func (id ParcelID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Parcel is a land unit with geometry, ownership metadata, area and zoning.
// Geometry holds the serialized GeoJSON boundary as delivered by the service.
type Parcel struct {
	ID             ParcelID `json:"id"`
	Geometry       string   `json:"geometry"`
	Name           string   `json:"name,omitempty"`
	MailingAddress string   `json:"mailingAddress,omitempty"`
	ZoningType     *string  `json:"zoningType"`
	Area           float64  `json:"area"`
}

// Zoning returns the parcel's zoning type, or "" when unzoned.
func (p Parcel) Zoning() string {
	if p.ZoningType == nil {
		return ""
	}
	return *p.ZoningType
}

// HasZoning reports whether the parcel carries a zoning type.
func (p Parcel) HasZoning() bool {
	return p.ZoningType != nil && *p.ZoningType != ""
}

// WithZoning returns a copy of p re-zoned to zoningType.
func (p Parcel) WithZoning(zoningType string) Parcel {
	z := zoningType
	p.ZoningType = &z
	return p
}

// ZoningPtr is a helper for building parcels in fixtures and stores.
func ZoningPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// AcresFromSquareMeters converts a geography area to acres.
func AcresFromSquareMeters(m2 float64) float64 {
	return m2 / SquareMetersPerAcre
}
