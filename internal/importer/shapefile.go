// Package importer loads parcel boundaries and attributes from ESRI
// shapefiles into the parcel store.
package importer

import (
	"context"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/store"
	"github.com/sells-group/zoning-cli/internal/zoning"
)

// Mapping names the DBF attribute columns holding each parcel field.
// Matching is case-insensitive.
type Mapping struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	MailingAddress string `yaml:"mailing_address"`
	ZoningType     string `yaml:"zoning_type"`
}

// DefaultMapping matches the column names of the county parcel export.
func DefaultMapping() Mapping {
	return Mapping{
		ID:             "id",
		Name:           "name",
		MailingAddress: "mailadd",
		ZoningType:     "zoning_typ",
	}
}

// Report summarizes one shapefile read.
type Report struct {
	Records       int            `json:"records"`
	Parcels       int            `json:"parcels"`
	Imported      int64          `json:"imported"`
	SkippedID     int            `json:"skippedId"`
	SkippedGeom   int            `json:"skippedGeometry"`
	Duplicates    int            `json:"duplicates"`
	UnknownZoning map[string]int `json:"unknownZoning,omitempty"`
}

// Reader converts shapefile records to parcel records.
type Reader struct {
	mapping Mapping
	vocab   zoning.Vocabulary
}

// NewReader creates a reader. Zoning values are resolved against vocab;
// values it does not recognise are imported as unzoned and counted.
func NewReader(mapping Mapping, vocab zoning.Vocabulary) *Reader {
	def := DefaultMapping()
	if mapping.ID == "" {
		mapping.ID = def.ID
	}
	if mapping.Name == "" {
		mapping.Name = def.Name
	}
	if mapping.MailingAddress == "" {
		mapping.MailingAddress = def.MailingAddress
	}
	if mapping.ZoningType == "" {
		mapping.ZoningType = def.ZoningType
	}
	return &Reader{mapping: mapping, vocab: vocab}
}

// Read parses the shapefile at path. Records without a usable id or polygon
// geometry are skipped; for repeated ids the last record wins.
func (r *Reader) Read(path string) ([]store.ParcelRecord, Report, error) {
	var rep Report

	reader, err := shp.Open(path)
	if err != nil {
		return nil, rep, eris.Wrapf(err, "importer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	if reader.GeometryType != shp.POLYGON && reader.GeometryType != shp.POLYGONZ && reader.GeometryType != shp.POLYGONM {
		return nil, rep, eris.Errorf("importer: %s holds shape type %v, want polygons", path, reader.GeometryType)
	}

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}
	idIdx, ok := fieldIdx[strings.ToLower(r.mapping.ID)]
	if !ok {
		return nil, rep, eris.Errorf("importer: %s has no %q column", path, r.mapping.ID)
	}

	attr := func(col string) string {
		idx, ok := fieldIdx[strings.ToLower(col)]
		if !ok {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
	}

	byID := make(map[model.ParcelID]int)
	var records []store.ParcelRecord

	for reader.Next() {
		rep.Records++
		_, shape := reader.Shape()

		id, err := parseID(strings.TrimSpace(strings.TrimRight(reader.Attribute(idIdx), "\x00")))
		if err != nil {
			rep.SkippedID++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			rep.SkippedGeom++
			continue
		}
		mp := toMultiPolygon(poly)
		if mp == nil {
			rep.SkippedGeom++
			continue
		}

		rec := store.ParcelRecord{
			ID:             id,
			Name:           attr(r.mapping.Name),
			MailingAddress: attr(r.mapping.MailingAddress),
			ZoningType:     r.zoning(attr(r.mapping.ZoningType), &rep),
			Geometry:       mp,
			Area:           AreaAcres(mp),
		}

		if i, dup := byID[id]; dup {
			rep.Duplicates++
			records[i] = rec
			continue
		}
		byID[id] = len(records)
		records = append(records, rec)
	}

	rep.Parcels = len(records)
	if rep.SkippedID+rep.SkippedGeom > 0 {
		zap.L().Warn("importer: skipped shapefile records",
			zap.String("path", path),
			zap.Int("bad_id", rep.SkippedID),
			zap.Int("bad_geometry", rep.SkippedGeom),
		)
	}
	return records, rep, nil
}

func (r *Reader) zoning(raw string, rep *Report) *string {
	if raw == "" {
		return nil
	}
	canonical, err := r.vocab.Canonical(raw)
	if err != nil {
		if rep.UnknownZoning == nil {
			rep.UnknownZoning = make(map[string]int)
		}
		rep.UnknownZoning[raw]++
		return nil
	}
	return &canonical
}

func parseID(raw string) (model.ParcelID, error) {
	if raw == "" {
		return 0, eris.New("importer: empty id")
	}
	// Numeric DBF columns may carry a decimal part.
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) && f > 0 {
		return model.ParcelID(int64(f)), nil
	}
	return 0, eris.Errorf("importer: invalid id %q", raw)
}

// Import reads path and upserts the parcels into st.
func Import(ctx context.Context, st store.Store, r *Reader, path string) (Report, error) {
	records, rep, err := r.Read(path)
	if err != nil {
		return rep, err
	}
	n, err := st.ImportParcels(ctx, records)
	if err != nil {
		return rep, eris.Wrapf(err, "importer: store parcels from %s", path)
	}
	rep.Imported = n
	zap.L().Info("importer: parcels imported",
		zap.String("path", path),
		zap.Int("records", rep.Records),
		zap.Int64("imported", n),
		zap.Int("duplicates", rep.Duplicates),
	)
	return rep, nil
}
