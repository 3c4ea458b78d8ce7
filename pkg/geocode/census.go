package geocode

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	censusOneLineURL = "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress"
	censusBatchURL   = "https://geocoding.geo.census.gov/geocoder/locations/addressbatch"
	censusBenchmark  = "Public_AR_Current"
)

// censusOneLineResponse is the JSON response from the Census single-address API.
type censusOneLineResponse struct {
	Result struct {
		AddressMatches []censusAddressMatch `json:"addressMatches"`
	} `json:"result"`
}

type censusAddressMatch struct {
	Coordinates struct {
		X float64 `json:"x"` // longitude
		Y float64 `json:"y"` // latitude
	} `json:"coordinates"`
	MatchedAddress string `json:"matchedAddress"`
}

// geocodeCensus geocodes a single address using the Census one-line API.
func (g *geocoder) geocodeCensus(ctx context.Context, addr AddressInput) (*Result, error) {
	params := url.Values{
		"address":   {formatOneLine(addr)},
		"benchmark": {censusBenchmark},
		"format":    {"json"},
	}

	var censusResp censusOneLineResponse
	if err := g.getJSON(ctx, "census", censusOneLineURL+"?"+params.Encode(), &censusResp); err != nil {
		return nil, err
	}

	if len(censusResp.Result.AddressMatches) == 0 {
		return &Result{Matched: false, Source: "census"}, nil
	}

	match := censusResp.Result.AddressMatches[0]
	return &Result{
		Latitude:       match.Coordinates.Y,
		Longitude:      match.Coordinates.X,
		Source:         "census",
		Quality:        "rooftop", // Census one-line matches are exact
		MatchedAddress: match.MatchedAddress,
		Matched:        true,
	}, nil
}

// batchGeocodeCensus geocodes up to 10,000 addresses via the Census batch API.
func (g *geocoder) batchGeocodeCensus(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	// Upload rows: id,street,city,state,zip
	var rows bytes.Buffer
	w := csv.NewWriter(&rows)
	idToIdx := make(map[string]int, len(addrs))
	for i, addr := range addrs {
		idToIdx[addr.ID] = i
		street := strings.TrimSpace(strings.TrimSpace(addr.Street) + " " + strings.TrimSpace(addr.Unit))
		if err := w.Write([]string{addr.ID, street, addr.City, addr.State, addr.ZipCode}); err != nil {
			return nil, eris.Wrap(err, "geocode: census batch write csv")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch write csv")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("benchmark", censusBenchmark); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch write benchmark")
	}
	part, err := writer.CreateFormFile("addressFile", "addresses.csv")
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch create form file")
	}
	if _, err := part.Write(rows.Bytes()); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch write form file")
	}
	if err := writer.Close(); err != nil {
		return nil, eris.Wrap(err, "geocode: census batch close writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, censusBatchURL, &buf)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch build request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	body, err := g.do(ctx, "census batch", req)
	if err != nil {
		return nil, err
	}
	return parseCensusBatchResponse(body, idToIdx, len(addrs))
}

// parseCensusBatchResponse parses the Census batch CSV response. Rows are
// "id","input address","Match|No_Match|Tie","Exact|Non_Exact","matched address","lon,lat",tigerlineid,side
// and unmatched rows stop after the third column.
func parseCensusBatchResponse(body []byte, idToIdx map[string]int, total int) ([]Result, error) {
	results := make([]Result, total)
	for i := range results {
		results[i].Source = "census"
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "geocode: census batch parse response")
		}
		if len(fields) < 3 {
			continue
		}
		idx, ok := idToIdx[strings.TrimSpace(fields[0])]
		if !ok || !strings.EqualFold(strings.TrimSpace(fields[2]), "Match") || len(fields) < 6 {
			continue
		}

		lon, lat, parseErr := parseCensusCoords(fields[5])
		if parseErr != nil {
			continue
		}
		results[idx] = Result{
			Latitude:       lat,
			Longitude:      lon,
			Source:         "census",
			Quality:        censusBatchQuality(fields[3]),
			MatchedAddress: fields[4],
			Matched:        true,
		}
	}

	return results, nil
}

// censusBatchQuality maps Census batch match exactness to quality.
func censusBatchQuality(exactness string) string {
	if strings.EqualFold(strings.TrimSpace(exactness), "exact") {
		return "rooftop"
	}
	return "range"
}

// parseCensusCoords parses "lon,lat" from Census batch response.
func parseCensusCoords(coords string) (lon, lat float64, err error) {
	parts := strings.SplitN(coords, ",", 2)
	if len(parts) != 2 {
		return 0, 0, eris.Errorf("geocode: invalid census coords %q", coords)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse census lon")
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse census lat")
	}
	return lon, lat, nil
}

// formatOneLine formats an address as a single line. The unit follows the
// street in the first segment.
func formatOneLine(addr AddressInput) string {
	street := strings.TrimSpace(addr.Street)
	if unit := strings.TrimSpace(addr.Unit); unit != "" {
		street = strings.TrimSpace(street + " " + unit)
	}
	var nonEmpty []string
	for _, p := range []string{street, addr.City, addr.State, addr.ZipCode} {
		if p = strings.TrimSpace(p); p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ", ")
}
