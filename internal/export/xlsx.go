// Package export writes parcel and zoning statistics workbooks and reads
// parcel id lists back from spreadsheets.
package export

import (
	"io"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/zoning"
)

const (
	SummarySheet = "Summary"
	ParcelsSheet = "Parcels"

	areaFormat = "0.00"
)

// Workbook is the content of one exported report.
type Workbook struct {
	Summary model.StatsSummary
	// Parcels, when non-empty, adds a sheet with one row per parcel.
	Parcels []model.Parcel
	// Order lists zoning types in display order; types absent from it
	// follow alphabetically.
	Order []string
}

// Build renders w into an xlsx file.
func Build(w Workbook) (*xlsx.File, error) {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SummarySheet)
	if err != nil {
		return nil, eris.Wrap(err, "export: add summary sheet")
	}
	header(summary, "Zoning type", "Parcels", "Area (acres)", "Share of area")
	for _, t := range typeOrder(w.Summary, w.Order) {
		area := w.Summary.AreaByZoningType[t]
		row := summary.AddRow()
		row.AddCell().SetString(t)
		row.AddCell().SetInt(w.Summary.CountByZoningType[t])
		row.AddCell().SetFloatWithFormat(area, areaFormat)
		row.AddCell().SetString(zoning.Percentage(area, w.Summary.TotalArea))
	}
	total := summary.AddRow()
	total.AddCell().SetString("Total")
	total.AddCell().SetInt(w.Summary.TotalCount)
	total.AddCell().SetFloatWithFormat(w.Summary.TotalArea, areaFormat)

	if len(w.Parcels) == 0 {
		return f, nil
	}

	parcels, err := f.AddSheet(ParcelsSheet)
	if err != nil {
		return nil, eris.Wrap(err, "export: add parcels sheet")
	}
	header(parcels, "ID", "Name", "Mailing address", "Zoning type", "Area (acres)")
	for _, p := range w.Parcels {
		zt := p.Zoning()
		if zt == "" {
			zt = model.UnzonedLabel
		}
		row := parcels.AddRow()
		row.AddCell().SetInt64(int64(p.ID))
		row.AddCell().SetString(p.Name)
		row.AddCell().SetString(p.MailingAddress)
		row.AddCell().SetString(zt)
		row.AddCell().SetFloatWithFormat(p.Area, areaFormat)
	}
	return f, nil
}

// Save writes w to path.
func Save(path string, w Workbook) error {
	f, err := Build(w)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// Write streams w to out.
func Write(out io.Writer, w Workbook) error {
	f, err := Build(w)
	if err != nil {
		return err
	}
	if err := f.Write(out); err != nil {
		return eris.Wrap(err, "export: write workbook")
	}
	return nil
}

func header(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, t := range titles {
		cell := row.AddCell()
		cell.SetString(t)
		style := xlsx.NewStyle()
		style.Font.Bold = true
		cell.SetStyle(style)
	}
}

func typeOrder(s model.StatsSummary, order []string) []string {
	seen := make(map[string]bool, len(s.CountByZoningType))
	var out []string
	for _, t := range order {
		if _, ok := s.CountByZoningType[t]; ok && !seen[t] {
			out = append(out, t)
			seen[t] = true
		}
	}
	var rest []string
	for t := range s.CountByZoningType {
		if !seen[t] {
			rest = append(rest, t)
		}
	}
	slices.SortFunc(rest, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return append(out, rest...)
}
