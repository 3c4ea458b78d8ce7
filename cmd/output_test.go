//go:build !integration

package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lscrefer/internal/batch"
	"github.com/sells-group/lscrefer/internal/geo"
	"github.com/sells-group/lscrefer/internal/lsc"
)

func TestFormatOffices(t *testing.T) {
	d := 2.345
	offices := []lsc.Office{
		{Index: 0, Address: "1016 West Sixth Avenue", Unit: "Suite 200", City: "Anchorage", State: "AK", Zip: "99501", OfficeType: "Main", Location: geo.Point{Latitude: 61.2, Longitude: -149.9}, Distance: &d},
		{Index: 1, Address: "1648 S Cushman St", City: "Fairbanks", State: "AK", Zip: "99701", OfficeType: "Branch"},
	}

	var buf bytes.Buffer
	formatOffices(&buf, offices)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "ADDRESS")
	assert.Contains(t, lines[2], "1016 West Sixth Avenue, Suite 200")
	assert.Contains(t, lines[2], "2.3")
	assert.Contains(t, lines[3], "Fairbanks")
}

func TestFormatProgram(t *testing.T) {
	var buf bytes.Buffer
	formatProgram(&buf, &lsc.Program{ServiceArea: "AK-1", Name: "Alaska Legal Services Corporation", Phone: "888-478-2572", URL: "https://www.alsc-law.org"})
	assert.Contains(t, buf.String(), "Alaska Legal Services Corporation")
	assert.Contains(t, buf.String(), "888-478-2572")

	buf.Reset()
	formatProgram(&buf, nil)
	assert.Contains(t, buf.String(), "No legal-aid program")
}

func testBatchResults() []batch.Result {
	pct := 150.0
	return []batch.Result{
		{Request: batch.Request{ID: "1", Street: "1 Main St", City: "Juneau", State: "AK"}, Program: "Alaska Legal Services Corporation", PovertyPercent: &pct},
		{Request: batch.Request{ID: "2", Street: "x", City: "y", State: "ZZ"}, Error: "lsc: batch: failed to geocode"},
	}
}

func TestWriteBatch_Stdout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeBatch(&buf, "", testBatchResults()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "id", records[0][0])
	assert.Equal(t, "150", records[1][14])
}

func TestWriteBatch_Files(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "out.csv")
	require.NoError(t, writeBatch(nil, csvPath, testBatchResults()))
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,street"))

	xlsxPath := filepath.Join(dir, "out.XLSX")
	require.NoError(t, writeBatch(nil, xlsxPath, testBatchResults()))
	f, err := xlsx.OpenFile(xlsxPath)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	assert.Len(t, f.Sheets[0].Rows, 3)
}
