// Package export writes resolver results in the formats the CLI and HTTP
// server offer: GeoJSON and shapefiles for offices, CSV and XLSX for batch
// results.
package export

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/lscrefer/internal/lsc"
)

// OfficesFeatureCollection converts offices to GeoJSON point features.
// Feature ids are the office indexes.
func OfficesFeatureCollection(offices []lsc.Office) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(offices))}
	for _, o := range offices {
		props := map[string]any{
			"index":       o.Index,
			"address":     o.Address,
			"city":        o.City,
			"state":       o.State,
			"zip":         o.Zip,
			"office_type": o.OfficeType,
		}
		if o.Unit != "" {
			props["unit"] = o.Unit
		}
		if o.Distance != nil {
			props["distance_miles"] = *o.Distance
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         strconv.Itoa(o.Index),
			Geometry:   o.Location.Geom(),
			Properties: props,
		})
	}
	return fc
}

// OfficesGeoJSON encodes offices as a GeoJSON FeatureCollection.
func OfficesGeoJSON(offices []lsc.Office) ([]byte, error) {
	data, err := json.Marshal(OfficesFeatureCollection(offices))
	if err != nil {
		return nil, eris.Wrap(err, "export: encode geojson")
	}
	return data, nil
}
