package lsc

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"

	"github.com/sells-group/lscrefer/internal/geo"
	"github.com/sells-group/lscrefer/pkg/arcgis"
)

// officeFields are the attributes every office record must carry.
var officeFields = []string{"address", "City", "State", "ZIP", "officetype"}

// OfficesFor returns the offices of prog in layer order. When ref is given
// it is geocoded and the offices are ordered by distance from it, nearest
// first, with Index renumbered to match. A nil program yields nil.
func (s *Service) OfficesFor(ctx context.Context, prog *Program, ref *Address) ([]Office, error) {
	const op = "offices for"
	if prog == nil {
		return nil, nil
	}
	if prog.RIN == "" {
		return nil, &UnresolvedReference{Kind: "region code for program", Code: prog.ServiceArea}
	}

	var origin geo.Point
	if ref != nil {
		pt, err := s.locate(ctx, op, ref)
		if err != nil {
			return nil, err
		}
		origin = pt
	}

	resp, err := observedQuery(ctx, s.client, s.metrics, ServiceOffices, s.cfg.OfficeURL, arcgis.OfficeQueryParams(prog.RIN))
	if err != nil {
		return nil, err
	}
	fs, err := arcgis.DecodeFeatureSet(resp.Body)
	if err != nil {
		return nil, &MalformedResponse{Op: op, Reason: err.Error(), Err: err}
	}

	offices := make([]Office, 0, len(fs.Features))
	for i, f := range fs.Features {
		o, err := officeFromAttributes(f.Attributes)
		if err != nil {
			return nil, &MalformedResponse{Op: op, Reason: fmt.Sprintf("office %d: %v", i, err)}
		}
		o.Index = i
		offices = append(offices, o)
	}

	if ref == nil {
		return offices, nil
	}
	for i := range offices {
		d := geo.DistanceMiles(origin, offices[i].Location)
		offices[i].Distance = &d
	}
	sort.SliceStable(offices, func(i, j int) bool {
		return *offices[i].Distance < *offices[j].Distance
	})
	for i := range offices {
		offices[i].Index = i
	}
	return offices, nil
}

func officeFromAttributes(attrs arcgis.Attributes) (Office, error) {
	vals := make(map[string]string, len(officeFields))
	for _, k := range officeFields {
		v, ok := attrs.Text(k)
		if !ok {
			return Office{}, eris.Errorf("missing %s", k)
		}
		vals[k] = v
	}
	lat, ok := attrs.Float("Latitude")
	if !ok {
		return Office{}, eris.New("missing Latitude")
	}
	lon, ok := attrs.Float("Longitude")
	if !ok {
		return Office{}, eris.New("missing Longitude")
	}
	unit, _ := attrs.Text("bldgSuite")
	return Office{
		Address:    vals["address"],
		Unit:       unit,
		City:       vals["City"],
		State:      vals["State"],
		Zip:        vals["ZIP"],
		OfficeType: vals["officetype"],
		Location:   geo.Point{Latitude: lat, Longitude: lon},
	}, nil
}

// CitiesNear lists the cities with an office of prog, nearest to the person
// first. Each city appears once; spellings that differ only in case are the
// same city.
func (s *Service) CitiesNear(ctx context.Context, prog *Program, person *Person) ([]string, error) {
	if prog == nil {
		return nil, nil
	}
	if person == nil {
		return nil, &InvalidInput{Field: "person", Reason: "required"}
	}
	offices, err := s.OfficesFor(ctx, prog, &person.Address)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	seen := make(map[string]bool, len(offices))
	var cities []string
	for _, o := range offices {
		city := strings.TrimSpace(o.City)
		if city == "" {
			continue
		}
		key := fold.String(city)
		if seen[key] {
			continue
		}
		seen[key] = true
		cities = append(cities, city)
	}
	return cities, nil
}
