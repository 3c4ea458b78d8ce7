package geocode

import (
	"context"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

const googleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Google reply statuses that are not failures.
const (
	googleStatusOK          = "OK"
	googleStatusZeroResults = "ZERO_RESULTS"
)

type googleGeocodeResponse struct {
	Results      []googleResult `json:"results"`
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

// geocodeGoogle places addr with the Google Geocoding API. ZERO_RESULTS is an
// unmatched result; quota, key and request problems are errors.
func (g *geocoder) geocodeGoogle(ctx context.Context, addr AddressInput) (*Result, error) {
	if g.googleKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	params := url.Values{
		"address": {formatOneLine(addr)},
		"key":     {g.googleKey},
	}

	var resp googleGeocodeResponse
	if err := g.getJSON(ctx, "google", googleGeocodeURL+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case googleStatusOK:
	case googleStatusZeroResults:
		return &Result{Source: "google"}, nil
	default:
		return nil, eris.Errorf("geocode: google status %s: %s", resp.Status, resp.ErrorMessage)
	}
	if len(resp.Results) == 0 {
		return &Result{Source: "google"}, nil
	}

	best := resp.Results[0]
	return &Result{
		Latitude:       best.Geometry.Location.Lat,
		Longitude:      best.Geometry.Location.Lng,
		Source:         "google",
		Quality:        googleQuality(best.Geometry.LocationType),
		MatchedAddress: best.FormattedAddress,
		Matched:        true,
	}, nil
}

// googleQuality maps Google's location_type onto Result.Quality.
func googleQuality(locType string) string {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return "rooftop"
	case "RANGE_INTERPOLATED":
		return "range"
	case "GEOMETRIC_CENTER":
		return "centroid"
	default:
		return "approximate"
	}
}
