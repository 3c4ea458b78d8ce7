package arcgis

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrMalformed marks a body that is not a feature set.
var ErrMalformed = errors.New("arcgis: malformed feature set")

// Attributes is a feature's field map. Numbers decode as json.Number.
type Attributes map[string]any

// Feature is one record in a feature set.
type Feature struct {
	Attributes Attributes `json:"attributes"`
}

// FeatureSet is the decoded layer response.
type FeatureSet struct {
	Features []Feature `json:"features"`
}

// DecodeFeatureSet parses body as a JSON object holding a "features" list
// whose entries each carry an "attributes" object.
func DecodeFeatureSet(body []byte) (*FeatureSet, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "response is not a JSON object: %v", err)
	}

	raw, ok := top["features"]
	if !ok {
		return nil, eris.Wrap(ErrMalformed, "missing features list")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, eris.Wrap(ErrMalformed, "features is not a list")
	}

	fs := &FeatureSet{Features: make([]Feature, 0, len(items))}
	for i, item := range items {
		var f map[string]json.RawMessage
		if err := json.Unmarshal(item, &f); err != nil || f == nil {
			return nil, eris.Wrapf(ErrMalformed, "feature %d is not an object", i)
		}
		rawAttrs, ok := f["attributes"]
		if !ok {
			return nil, eris.Wrapf(ErrMalformed, "feature %d has no attributes", i)
		}
		dec := json.NewDecoder(bytes.NewReader(rawAttrs))
		dec.UseNumber()
		var attrs Attributes
		if err := dec.Decode(&attrs); err != nil || attrs == nil {
			return nil, eris.Wrapf(ErrMalformed, "feature %d attributes is not an object", i)
		}
		fs.Features = append(fs.Features, Feature{Attributes: attrs})
	}
	return fs, nil
}

// Has reports whether key is present, even when its value is null.
func (a Attributes) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Text returns the trimmed text form of a field. Numbers are formatted
// without trailing zeros. Missing and null fields report false.
func (a Attributes) Text(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), true
		}
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// Float returns a numeric field. Numeric strings are accepted.
func (a Attributes) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
