package importer

import (
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
)

const earthRadiusMeters = 6371008.8

// toMultiPolygon groups the rings of a shapefile polygon into polygons.
// Shapefiles store outer rings clockwise and holes counter-clockwise; a
// hole belongs to the outer ring that precedes it.
func toMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("importer: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		outer := current == nil || signedArea(flat) < 0
		if outer {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
			zap.L().Debug("importer: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is the planar shoelace area of a flat XY ring; negative for
// clockwise rings.
func signedArea(flat []float64) float64 {
	n := len(flat) / 2
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += flat[2*i]*flat[2*j+1] - flat[2*j]*flat[2*i+1]
	}
	return sum / 2
}

// AreaAcres approximates the area of a lon/lat multipolygon in acres by
// scaling each ring's degree area at its mean latitude.
func AreaAcres(mp *geom.MultiPolygon) float64 {
	if mp == nil {
		return 0
	}
	degToM := earthRadiusMeters * math.Pi / 180
	var total float64
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		for r := 0; r < poly.NumLinearRings(); r++ {
			flat := poly.LinearRing(r).FlatCoords()
			a := math.Abs(signedArea(flat)) * degToM * degToM * math.Cos(meanLat(flat)*math.Pi/180)
			if r == 0 {
				total += a
			} else {
				total -= a
			}
		}
	}
	if total < 0 {
		return 0
	}
	return model.AcresFromSquareMeters(total)
}

func meanLat(flat []float64) float64 {
	n := len(flat) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += flat[2*i+1]
	}
	return sum / float64(n)
}
