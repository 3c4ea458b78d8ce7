// Package poverty computes a household's income as a percentage of the
// federal poverty guideline.
package poverty

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Guideline table columns.
const (
	ColumnDefault = 0
	ColumnAlaska  = 1
	ColumnHawaii  = 2
)

// MaxListedSize is the largest household size with its own row in the table.
const MaxListedSize = 8

// InvalidInput reports a household size that is not a positive integer.
type InvalidInput struct {
	Field  string
	Value  any
	Reason string
}

func (e *InvalidInput) Error() string {
	return fmt.Sprintf("poverty: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Table holds guideline thresholds for household sizes 1-8 plus the
// per-person increment used beyond 8. Levels[0] is unused.
type Table struct {
	Levels [MaxListedSize + 1][3]float64
	Extra  [3]float64
}

type tableFile struct {
	Level map[any][]float64 `yaml:"level"`
}

// Parse reads a guideline table from YAML:
//
//	level:
//	  1: [default, alaska, hawaii]
//	  ...
//	  8: [default, alaska, hawaii]
//	  extra: [default, alaska, hawaii]
func Parse(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "poverty: parse table")
	}
	if len(f.Level) == 0 {
		return nil, eris.New("poverty: table has no level entries")
	}

	// Size keys decode as ints, "extra" as a string.
	levels := make(map[string][]float64, len(f.Level))
	for k, row := range f.Level {
		levels[fmt.Sprint(k)] = row
	}

	var t Table
	for size := 1; size <= MaxListedSize; size++ {
		row, ok := levels[strconv.Itoa(size)]
		if !ok {
			return nil, eris.Errorf("poverty: table missing household size %d", size)
		}
		if err := fillRow(&t.Levels[size], row); err != nil {
			return nil, eris.Wrapf(err, "poverty: household size %d", size)
		}
	}
	extra, ok := levels["extra"]
	if !ok {
		return nil, eris.New("poverty: table missing extra increment")
	}
	if err := fillRow(&t.Extra, extra); err != nil {
		return nil, eris.Wrap(err, "poverty: extra increment")
	}
	return &t, nil
}

func fillRow(dst *[3]float64, row []float64) error {
	if len(row) != 3 {
		return eris.Errorf("expected 3 columns, got %d", len(row))
	}
	for i, v := range row {
		if v <= 0 {
			return eris.Errorf("column %d must be positive, got %v", i, v)
		}
		dst[i] = v
	}
	return nil
}

// Column selects the table column for a two-letter state code. Hawaii is
// checked before Alaska; every other state or territory uses the default.
func Column(state string) int {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case "HI":
		return ColumnHawaii
	case "AK":
		return ColumnAlaska
	default:
		return ColumnDefault
	}
}

// HouseholdSize coerces v to a positive household size. Integers and numeric
// strings are accepted; floats are truncated toward zero.
func HouseholdSize(v any) (int, error) {
	var n int
	switch x := v.(type) {
	case int:
		n = x
	case int32:
		n = int(x)
	case int64:
		n = int(x)
	case uint:
		n = int(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, &InvalidInput{Field: "household size", Value: v, Reason: "not a number"}
		}
		n = int(x)
	case float32:
		return HouseholdSize(float64(x))
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, &InvalidInput{Field: "household size", Value: v, Reason: "not an integer"}
		}
		n = parsed
	default:
		return 0, &InvalidInput{Field: "household size", Value: v, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
	if n <= 0 {
		return 0, &InvalidInput{Field: "household size", Value: v, Reason: "must be positive"}
	}
	return n, nil
}

// Threshold returns the guideline amount for a household of size in state.
// Sizes above 8 add the per-person increment for each extra member.
func (t *Table) Threshold(size int, state string) (float64, error) {
	if size <= 0 {
		return 0, &InvalidInput{Field: "household size", Value: size, Reason: "must be positive"}
	}
	col := Column(state)
	if size <= MaxListedSize {
		return t.Levels[size][col], nil
	}
	return t.Levels[MaxListedSize][col] + t.Extra[col]*float64(size-MaxListedSize), nil
}

// Percentage returns income as a percentage of half the applicable
// guideline: 100 * income / (0.5 * threshold).
func (t *Table) Percentage(income float64, size any, state string) (float64, error) {
	n, err := HouseholdSize(size)
	if err != nil {
		return 0, err
	}
	threshold, err := t.Threshold(n, state)
	if err != nil {
		return 0, err
	}
	return 100.0 * income / (0.5 * threshold), nil
}
