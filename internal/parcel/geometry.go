package parcel

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// ErrUnsupportedGeometry is returned for boundaries that are not polygonal.
var ErrUnsupportedGeometry = eris.New("parcel: unsupported geometry type")

// ParseGeometry decodes a serialized GeoJSON boundary. Only Polygon and
// MultiPolygon geometries are accepted.
func ParseGeometry(raw string) (geom.T, error) {
	if raw == "" {
		return nil, eris.New("parcel: empty geometry")
	}

	var g geom.T
	if err := geojson.Unmarshal([]byte(raw), &g); err != nil {
		return nil, eris.Wrap(err, "parcel: decode geojson geometry")
	}

	switch g.(type) {
	case *geom.Polygon, *geom.MultiPolygon:
		return g, nil
	default:
		return nil, eris.Wrapf(ErrUnsupportedGeometry, "parcel: got %T", g)
	}
}

// Extent returns the bounding box of all geometries, or nil when none of them
// contribute coordinates.
func Extent(geoms []geom.T) *geom.Bounds {
	var b *geom.Bounds
	for _, g := range geoms {
		if g == nil {
			continue
		}
		gb := g.Bounds()
		if gb == nil || gb.IsEmpty() {
			continue
		}
		if b == nil {
			b = geom.NewBounds(geom.XY)
		}
		b = b.Extend(g)
	}
	return b
}
