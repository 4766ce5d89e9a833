package maplayer

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/zoning-cli/internal/model"
)

// Feature is one rendered parcel.
type Feature struct {
	Parcel   model.Parcel
	Geometry geom.T
	Selected bool
	Hovered  bool
	Style    Style
}

// Layer is an immutable rendering of the parcel cache for one
// (parcels, selection, hover) tuple. Hover restyles mutate a copy.
type Layer struct {
	Session    uint64
	Generation uint64
	Features   []Feature
	Bounds     *geom.Bounds
	index      map[model.ParcelID]int
}

func newLayer(session, generation uint64, features []Feature, bounds *geom.Bounds) *Layer {
	l := &Layer{
		Session:    session,
		Generation: generation,
		Features:   features,
		Bounds:     bounds,
		index:      make(map[model.ParcelID]int, len(features)),
	}
	for i, f := range features {
		l.index[f.Parcel.ID] = i
	}
	return l
}

// Len returns the number of features.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Features)
}

// Feature looks up the rendered feature for a parcel.
func (l *Layer) Feature(id model.ParcelID) (Feature, bool) {
	if l == nil {
		return Feature{}, false
	}
	i, ok := l.index[id]
	if !ok {
		return Feature{}, false
	}
	return l.Features[i], true
}

// withStyle returns a copy of l with one feature restyled.
func (l *Layer) withStyle(id model.ParcelID, hovered bool, style Style) *Layer {
	i, ok := l.index[id]
	if !ok {
		return l
	}
	features := make([]Feature, len(l.Features))
	copy(features, l.Features)
	features[i].Hovered = hovered
	features[i].Style = style

	out := *l
	out.Features = features
	return &out
}

// FeatureCollection renders the layer as GeoJSON for transport to a map
// client. Style and selection flags travel in feature properties.
func (l *Layer) FeatureCollection() *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, l.Len())}
	if l == nil {
		return fc
	}
	fc.BBox = l.Bounds
	for _, f := range l.Features {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       f.Parcel.ID.String(),
			Geometry: f.Geometry,
			Properties: map[string]any{
				"id":             f.Parcel.ID,
				"name":           f.Parcel.Name,
				"mailingAddress": f.Parcel.MailingAddress,
				"zoningType":     f.Parcel.ZoningType,
				"area":           f.Parcel.Area,
				"selected":       f.Selected,
				"hovered":        f.Hovered,
				"style":          f.Style,
			},
		})
	}
	return fc
}

// MarshalGeoJSON encodes the layer as a GeoJSON FeatureCollection.
func (l *Layer) MarshalGeoJSON() ([]byte, error) {
	data, err := l.FeatureCollection().MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "maplayer: marshal feature collection")
	}
	return data, nil
}
