package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/lscrefer/internal/geo"
	"github.com/sells-group/lscrefer/internal/lsc"
)

// addressFlags are the household address flags shared by the lookup
// commands.
type addressFlags struct {
	name   string
	street string
	unit   string
	city   string
	state  string
	zip    string
	lat    float64
	lon    float64
}

func (f *addressFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.name, "name", "", "household member name")
	fs.StringVar(&f.street, "street", "", "street address")
	fs.StringVar(&f.unit, "unit", "", "apartment or suite")
	fs.StringVar(&f.city, "city", "", "city")
	fs.StringVar(&f.state, "state", "", "two-letter state code")
	fs.StringVar(&f.zip, "zip", "", "ZIP code")
	fs.Float64Var(&f.lat, "lat", 0, "latitude (skips geocoding when set with --lon)")
	fs.Float64Var(&f.lon, "lon", 0, "longitude (skips geocoding when set with --lat)")
}

// person builds the household from the flags. --lat/--lon count as set
// when either flag was given.
func (f *addressFlags) person(cmd *cobra.Command) *lsc.Person {
	p := &lsc.Person{
		Name: f.name,
		Address: lsc.Address{
			Street: f.street,
			Unit:   f.unit,
			City:   f.city,
			State:  f.state,
			Zip:    f.zip,
		},
	}
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
		p.Address.Location = &geo.Point{Latitude: f.lat, Longitude: f.lon}
	}
	return p
}
