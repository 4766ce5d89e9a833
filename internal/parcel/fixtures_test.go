package parcel

import (
	"fmt"

	"github.com/sells-group/zoning-cli/internal/model"
)

// square returns a GeoJSON polygon with its south-west corner at (x, y).
func square(x, y, size float64) string {
	return fmt.Sprintf(`{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}`,
		x, y, x+size, y, x+size, y+size, x, y+size, x, y)
}

func fixtureParcels() []model.Parcel {
	return []model.Parcel{
		{ID: 1, Geometry: square(-96.80, 32.78, 0.01), Name: "One", ZoningType: model.ZoningPtr("Residential"), Area: 1.2},
		{ID: 2, Geometry: square(-96.79, 32.79, 0.01), Name: "Two", ZoningType: model.ZoningPtr("Commercial"), Area: 2.4},
		{ID: 3, Geometry: square(-96.70, 32.70, 0.02), Name: "Three", Area: 0.5},
	}
}
