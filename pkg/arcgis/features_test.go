package arcgis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFeatureSet(t *testing.T) {
	body := `{
		"objectIdFieldName": "OBJECTID",
		"features": [
			{"attributes": {"ServArea": " MA04 ", "RIN": 122000, "Grantee": "Community Legal Aid"}},
			{"attributes": {"ServArea": "NY-9", "RIN": "333071", "Latitude": 42.65, "Longitude": -73.75}}
		]
	}`
	fs, err := DecodeFeatureSet([]byte(body))
	require.NoError(t, err)
	require.Len(t, fs.Features, 2)

	attrs := fs.Features[0].Attributes
	area, ok := attrs.Text("ServArea")
	assert.True(t, ok)
	assert.Equal(t, "MA04", area)

	rin, ok := attrs.Text("RIN")
	assert.True(t, ok)
	assert.Equal(t, "122000", rin)

	lat, ok := fs.Features[1].Attributes.Float("Latitude")
	assert.True(t, ok)
	assert.InDelta(t, 42.65, lat, 1e-9)
}

func TestDecodeFeatureSet_Empty(t *testing.T) {
	fs, err := DecodeFeatureSet([]byte(`{"features": []}`))
	require.NoError(t, err)
	assert.Empty(t, fs.Features)
}

func TestDecodeFeatureSet_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `<html>`, "not a JSON object"},
		{"array", `[]`, "not a JSON object"},
		{"empty object", `{}`, "missing features list"},
		{"features null", `{"features": null}`, "features is not a list"},
		{"features object", `{"features": {}}`, "features is not a list"},
		{"feature scalar", `{"features": [1]}`, "feature 0 is not an object"},
		{"no attributes", `{"features": [{"geometry": {}}]}`, "feature 0 has no attributes"},
		{"attributes list", `{"features": [{"attributes": []}]}`, "feature 0 attributes is not an object"},
		{"attributes null", `{"features": [{"attributes": {}}, {"attributes": null}]}`, "feature 1 attributes is not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFeatureSet([]byte(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAttributes_Text(t *testing.T) {
	fs, err := DecodeFeatureSet([]byte(`{"features":[{"attributes":{
		"s": "  Boston ", "i": 42, "f": 1.50, "b": true, "n": null, "o": {"x": 1}
	}}]}`))
	require.NoError(t, err)
	attrs := fs.Features[0].Attributes

	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"s", "Boston", true},
		{"i", "42", true},
		{"f", "1.5", true},
		{"b", "true", true},
		{"n", "", false},
		{"o", "", false},
		{"missing", "", false},
	}
	for _, tt := range tests {
		got, ok := attrs.Text(tt.key)
		assert.Equal(t, tt.wantOK, ok, tt.key)
		assert.Equal(t, tt.want, got, tt.key)
	}
	assert.True(t, attrs.Has("n"))
	assert.False(t, attrs.Has("missing"))
}

func TestAttributes_Float(t *testing.T) {
	attrs := Attributes{"f": 1.25, "s": " -71.5 ", "bad": "abc", "b": true}

	f, ok := attrs.Float("f")
	assert.True(t, ok)
	assert.InDelta(t, 1.25, f, 1e-9)

	f, ok = attrs.Float("s")
	assert.True(t, ok)
	assert.InDelta(t, -71.5, f, 1e-9)

	_, ok = attrs.Float("bad")
	assert.False(t, ok)
	_, ok = attrs.Float("b")
	assert.False(t, ok)
	_, ok = attrs.Float("missing")
	assert.False(t, ok)
}
