package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lscrefer/internal/batch"
)

// BatchColumns is the header row of batch output.
var BatchColumns = []string{
	"id", "street", "unit", "city", "state", "zip", "income", "household_size",
	"latitude", "longitude", "service_area", "program", "phone", "url",
	"poverty_percent", "error",
}

// batchSheet is the worksheet name in XLSX output.
const batchSheet = "results"

// WriteBatchCSV writes results as CSV with a header row.
func WriteBatchCSV(w io.Writer, results []batch.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BatchColumns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, r := range results {
		if err := cw.Write(batchRecord(r)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", r.ID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// WriteBatchXLSX writes results as a single-sheet workbook. Coordinates and
// poverty percentages are numeric cells.
func WriteBatchXLSX(w io.Writer, results []batch.Result) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(batchSheet)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range BatchColumns {
		header.AddCell().SetString(c)
	}

	for _, r := range results {
		row := sheet.AddRow()
		for _, v := range []string{r.ID, r.Street, r.Unit, r.City, r.State, r.Zip, r.Income, r.HouseholdSize} {
			row.AddCell().SetString(v)
		}
		addFloat(row, latitude(r))
		addFloat(row, longitude(r))
		for _, v := range []string{r.ServiceArea, r.Program, r.Phone, r.URL} {
			row.AddCell().SetString(v)
		}
		addFloat(row, r.PovertyPercent)
		row.AddCell().SetString(r.Error)
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func addFloat(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v == nil {
		cell.SetString("")
		return
	}
	cell.SetFloat(*v)
}

func batchRecord(r batch.Result) []string {
	return []string{
		r.ID, r.Street, r.Unit, r.City, r.State, r.Zip, r.Income, r.HouseholdSize,
		formatFloat(latitude(r)), formatFloat(longitude(r)),
		r.ServiceArea, r.Program, r.Phone, r.URL,
		formatFloat(r.PovertyPercent), r.Error,
	}
}

func latitude(r batch.Result) *float64 {
	if r.Location == nil {
		return nil
	}
	return &r.Location.Latitude
}

func longitude(r batch.Result) *float64 {
	if r.Location == nil {
		return nil
	}
	return &r.Location.Longitude
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
