// Package geo holds the coordinate type shared by the resolvers and the
// great-circle distance used to order offices by proximity.
package geo

import (
	"fmt"

	"github.com/twpayne/go-geom"
)

// SRID for WGS84 longitude/latitude.
const SRID = 4326

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String formats the point as "lon,lat", the order ArcGIS expects for a
// point geometry parameter.
func (p Point) String() string {
	return fmt.Sprintf("%v,%v", p.Longitude, p.Latitude)
}

// Valid reports whether the point lies within the WGS84 coordinate range.
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// Geom converts the point to a go-geom XY point tagged with SRID 4326.
func (p Point) Geom() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Longitude, p.Latitude}).SetSRID(SRID)
}
