// Package lsc resolves the legal-aid program serving a household's location
// and the offices of that program. Programs come from the bundled directory
// joined with the remote service-area layer; the join is held in an Index
// that is rebuilt wholesale on reload.
package lsc

import (
	"strings"

	"github.com/sells-group/lscrefer/internal/geo"
	"github.com/sells-group/lscrefer/pkg/geocode"
)

// Program is a legal-aid grantee. RIN and ServA are empty until the program
// is matched to a remote service-area feature.
type Program struct {
	ServiceArea string `json:"service_area"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	URL         string `json:"url"`
	RIN         string `json:"rin,omitempty"`
	ServA       string `json:"serv_a,omitempty"`
}

// ServiceAreaFeature is one record of the bulk service-area layer.
type ServiceAreaFeature struct {
	ServArea  string
	ServArea1 string
	RIN       string
	ServA     string
}

// ServiceArea is the raw point-lookup match together with its program.
type ServiceArea struct {
	Code    string   `json:"code"`
	Grantee string   `json:"grantee"`
	RIN     string   `json:"rin,omitempty"`
	ServA   string   `json:"serv_a,omitempty"`
	Program *Program `json:"program"`
}

// Office is one office location of a program. Distance is set only when the
// list was ordered by proximity.
type Office struct {
	Index      int       `json:"index"`
	Address    string    `json:"address"`
	Unit       string    `json:"unit,omitempty"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	Zip        string    `json:"zip"`
	OfficeType string    `json:"office_type"`
	Location   geo.Point `json:"location"`
	Distance   *float64  `json:"distance_miles,omitempty"`
}

// Address is a postal address. Location is filled in once geocoded, or may
// be supplied up front to skip geocoding.
type Address struct {
	Street   string     `json:"street"`
	Unit     string     `json:"unit,omitempty"`
	City     string     `json:"city"`
	State    string     `json:"state"`
	Zip      string     `json:"zip"`
	Location *geo.Point `json:"location,omitempty"`
}

// OneLine formats the address for messages and geocoding.
func (a *Address) OneLine() string {
	street := strings.TrimSpace(strings.TrimSpace(a.Street) + " " + strings.TrimSpace(a.Unit))
	var parts []string
	for _, p := range []string{street, a.City, strings.TrimSpace(a.State + " " + a.Zip)} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func (a *Address) geocodeInput() geocode.AddressInput {
	return geocode.AddressInput{
		Street:  a.Street,
		Unit:    a.Unit,
		City:    a.City,
		State:   a.State,
		ZipCode: a.Zip,
	}
}

// Person is the household member whose address drives resolution.
type Person struct {
	Name    string  `json:"name,omitempty"`
	Address Address `json:"address"`
}
