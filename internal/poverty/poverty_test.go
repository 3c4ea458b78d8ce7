package poverty

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTableYAML = `
level:
  1: [12760, 15950, 14680]
  2: [17240, 21550, 19830]
  3: [21720, 27150, 24980]
  4: [26200, 32750, 30130]
  5: [30680, 38350, 35280]
  6: [35160, 43950, 40430]
  7: [39640, 49550, 45580]
  8: [44120, 55150, 50730]
  extra: [4480, 5600, 5150]
`

func testTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := Parse([]byte(testTableYAML))
	require.NoError(t, err)
	return tbl
}

func TestParse(t *testing.T) {
	tbl := testTable(t)
	assert.InDelta(t, 12760, tbl.Levels[1][ColumnDefault], 0)
	assert.InDelta(t, 55150, tbl.Levels[8][ColumnAlaska], 0)
	assert.InDelta(t, 5150, tbl.Extra[ColumnHawaii], 0)
}

func TestParse_MissingSize(t *testing.T) {
	_, err := Parse([]byte(`
level:
  1: [1, 2, 3]
  extra: [1, 2, 3]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing household size 2")
}

func TestParse_MissingExtra(t *testing.T) {
	_, err := Parse([]byte(`
level:
  1: [1, 2, 3]
  2: [1, 2, 3]
  3: [1, 2, 3]
  4: [1, 2, 3]
  5: [1, 2, 3]
  6: [1, 2, 3]
  7: [1, 2, 3]
  8: [1, 2, 3]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extra")
}

func TestParse_WrongColumnCount(t *testing.T) {
	_, err := Parse([]byte(`
level:
  1: [1, 2]
`))
	require.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse([]byte(`{}`))
	require.Error(t, err)
}

func TestColumn(t *testing.T) {
	assert.Equal(t, ColumnHawaii, Column("HI"))
	assert.Equal(t, ColumnAlaska, Column("AK"))
	assert.Equal(t, ColumnDefault, Column("MA"))
	assert.Equal(t, ColumnDefault, Column("PR"))
	assert.Equal(t, ColumnDefault, Column(""))
	assert.Equal(t, ColumnHawaii, Column(" hi "))
}

func TestPercentage_ListedSizes(t *testing.T) {
	tbl := testTable(t)
	states := map[string]int{"MA": ColumnDefault, "AK": ColumnAlaska, "HI": ColumnHawaii}
	income := 25000.0

	for size := 1; size <= MaxListedSize; size++ {
		for state, col := range states {
			got, err := tbl.Percentage(income, size, state)
			require.NoError(t, err)
			want := 100 * income / (0.5 * tbl.Levels[size][col])
			assert.InDelta(t, want, got, 1e-9, "size=%d state=%s", size, state)
		}
	}
}

func TestPercentage_Extrapolated(t *testing.T) {
	tbl := testTable(t)
	for _, size := range []int{9, 10, 15} {
		got, err := tbl.Percentage(60000, size, "HI")
		require.NoError(t, err)
		threshold := tbl.Levels[8][ColumnHawaii] + tbl.Extra[ColumnHawaii]*float64(size-8)
		assert.InDelta(t, 100*60000/(0.5*threshold), got, 1e-9)
	}
}

func TestPercentage_KnownValue(t *testing.T) {
	tbl := testTable(t)
	// 12760 guideline, half is 6380; income 6380 is exactly 100%.
	got, err := tbl.Percentage(6380, 1, "NY")
	require.NoError(t, err)
	assert.InDelta(t, 100.0, got, 1e-9)
}

func TestPercentage_InvalidSize(t *testing.T) {
	tbl := testTable(t)
	for _, size := range []any{0, -1, "abc", "", "2.5", nil, []int{1}} {
		_, err := tbl.Percentage(1000, size, "MA")
		require.Error(t, err, "size %v", size)
		var invalid *InvalidInput
		assert.True(t, errors.As(err, &invalid), "size %v should be InvalidInput", size)
	}
}

func TestHouseholdSize_Coercion(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{3, 3},
		{int64(4), 4},
		{"5", 5},
		{" 6 ", 6},
		{2.9, 2},
		{float32(7), 7},
	}
	for _, tt := range tests {
		got, err := HouseholdSize(tt.in)
		require.NoError(t, err, "input %v", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestHouseholdSize_FractionBelowOne(t *testing.T) {
	_, err := HouseholdSize(0.5)
	require.Error(t, err)
}

func TestThreshold_NonPositive(t *testing.T) {
	tbl := testTable(t)
	_, err := tbl.Threshold(0, "MA")
	require.Error(t, err)
}
