package export

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/zoning-cli/internal/model"
)

// IDOptions selects where parcel ids are read from.
type IDOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	Column     int    // zero-based
	SkipRows   int    // header rows to skip
}

// ReadParcelIDs reads parcel ids from one column of a workbook, such as the
// ID column of an exported parcels sheet. Blank cells are ignored; any other
// non-numeric value is an error.
func ReadParcelIDs(path string, opts IDOptions) ([]model.ParcelID, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open workbook")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var ids []model.ParcelID
	for i, row := range sheet.Rows {
		if i < opts.SkipRows || row == nil || opts.Column >= len(row.Cells) {
			continue
		}
		raw := strings.TrimSpace(row.Cells[opts.Column].String())
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			return nil, eris.Errorf("export: row %d: invalid parcel id %q", i+1, raw)
		}
		ids = append(ids, model.ParcelID(n))
	}
	return ids, nil
}

func getSheet(f *xlsx.File, opts IDOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("export: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("export: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}
