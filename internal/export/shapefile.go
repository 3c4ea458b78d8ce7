package export

import (
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lscrefer/internal/lsc"
)

// Office attribute table layout. DBF field names are limited to 10 characters.
var officeFields = []shp.Field{
	shp.NumberField("INDEX", 6),
	shp.StringField("ADDRESS", 100),
	shp.StringField("UNIT", 50),
	shp.StringField("CITY", 50),
	shp.StringField("STATE", 2),
	shp.StringField("ZIP", 10),
	shp.StringField("OFFICETYPE", 30),
	shp.FloatField("DIST_MI", 12, 3),
}

// WriteOfficesShapefile writes offices as a POINT shapefile at path (the
// .shx and .dbf files are written alongside). Offices without a distance get
// -1 in DIST_MI.
func WriteOfficesShapefile(path string, offices []lsc.Office) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrap(err, "export: create shapefile dir")
	}
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "export: create shapefile %s", path)
	}
	defer w.Close()

	if err := w.SetFields(officeFields); err != nil {
		return eris.Wrap(err, "export: set shapefile fields")
	}

	for _, o := range offices {
		row := int(w.Write(&shp.Point{X: o.Location.Longitude, Y: o.Location.Latitude}))
		dist := -1.0
		if o.Distance != nil {
			dist = *o.Distance
		}
		values := []any{
			o.Index,
			truncate(o.Address, 100),
			truncate(o.Unit, 50),
			truncate(o.City, 50),
			truncate(o.State, 2),
			truncate(o.Zip, 10),
			truncate(o.OfficeType, 30),
			dist,
		}
		for field, v := range values {
			if err := w.WriteAttribute(row, field, v); err != nil {
				return eris.Wrapf(err, "export: write office %d attribute %d", o.Index, field)
			}
		}
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
