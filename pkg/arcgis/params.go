package arcgis

import (
	"net/url"
	"strconv"
)

const wgs84 = `{"wkid": 4326}`

// commonParams are the fields every layer query sends, with empty or
// neutral values for the options that are not used.
func commonParams() url.Values {
	return url.Values{
		"objectIds":                   {""},
		"time":                        {""},
		"resultType":                  {"none"},
		"distance":                    {"0.0"},
		"units":                       {"esriSRUnit_Meter"},
		"returnGeodetic":              {"false"},
		"outFields":                   {"*"},
		"returnGeometry":              {"false"},
		"multipatchOption":            {"xyFootprint"},
		"maxAllowableOffset":          {""},
		"geometryPrecision":           {""},
		"datumTransformation":         {""},
		"applyVCSProjection":          {"false"},
		"returnIdsOnly":               {"false"},
		"returnUniqueIdsOnly":         {"false"},
		"returnCountOnly":             {"false"},
		"returnExtentOnly":            {"false"},
		"returnQueryGeometry":         {"false"},
		"returnDistinctValues":        {"false"},
		"orderByFields":               {""},
		"groupByFieldsForStatistics":  {""},
		"outStatistics":               {""},
		"having":                      {""},
		"resultOffset":                {""},
		"resultRecordCount":           {""},
		"returnZ":                     {"false"},
		"returnM":                     {"false"},
		"returnExceededLimitFeatures": {"true"},
		"quantizationParameters":      {""},
		"sqlFormat":                   {"none"},
		"f":                           {"pjson"},
		"token":                       {""},
	}
}

// envelopeParams selects every feature intersecting an empty envelope.
func envelopeParams() url.Values {
	p := commonParams()
	p.Set("geometry", "")
	p.Set("geometryType", "esriGeometryEnvelope")
	p.Set("inSR", "")
	p.Set("outSR", "")
	p.Set("spatialRel", "esriSpatialRelIntersects")
	return p
}

// PointQueryParams finds the polygon containing (lon, lat) in WGS84.
func PointQueryParams(lon, lat float64) url.Values {
	p := commonParams()
	p.Set("where", "OBJECTID>=0")
	p.Set("geometry", FormatCoord(lon)+","+FormatCoord(lat))
	p.Set("geometryType", "esriGeometryPoint")
	p.Set("inSR", wgs84)
	p.Set("outSR", wgs84)
	p.Set("spatialRel", "esriSpatialRelWithin")
	p.Set("returnCentroid", "false")
	return p
}

// OfficeQueryParams selects the offices of the grantee with region code rin.
func OfficeQueryParams(rin string) url.Values {
	p := envelopeParams()
	p.Set("where", "recipID="+rin)
	return p
}

// BulkServiceAreaParams selects every service-area feature.
func BulkServiceAreaParams() url.Values {
	p := envelopeParams()
	p.Set("where", "OBJECTID>=0")
	p.Set("returnCentroid", "false")
	return p
}

// FormatCoord renders a coordinate in its shortest exact decimal form.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
