package series

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExtractKeepsPositions(t *testing.T) {
	cells := []Cell{NumCell(1.5), NullCell(), TextCell("n/a"), NumCell(-2), {Num: math.Inf(1)}, NumCell(0)}
	obs := Extract(cells)

	assert(t, len(obs) == 6, "one observation per cell, got %d", len(obs))
	for i, o := range obs {
		assert(t, o.Index == i, "index %d expected %d", o.Index, i)
	}
	assert(t, obs[0].Valid() && *obs[0].Value == 1.5, "numeric cell")
	assert(t, !obs[1].Valid(), "null cell is missing")
	assert(t, !obs[2].Valid(), "text cell is missing")
	assert(t, obs[3].Valid() && *obs[3].Value == -2, "negative cell")
	assert(t, !obs[4].Valid(), "infinite cell is missing")
	assert(t, obs[5].Valid() && *obs[5].Value == 0, "zero is a value")

	values := Values(obs)
	assert(t, len(values) == 3 && values[0] == 1.5 && values[1] == -2 && values[2] == 0, "values %v", values)
}

func TestExtractEmpty(t *testing.T) {
	assert(t, len(Extract(nil)) == 0, "no cells no observations")
	assert(t, len(Values(nil)) == 0, "no observations no values")
}

func TestNullCellWithNumberIsMissing(t *testing.T) {
	obs := Extract([]Cell{{Num: 3, IsNull: true}})
	assert(t, !obs[0].Valid(), "null flag wins over the number")
}

func TestNewObservations(t *testing.T) {
	obs := NewObservations(1, math.NaN(), 3)
	assert(t, len(obs) == 3, "observations")
	assert(t, obs[0].Valid() && !obs[1].Valid() && obs[2].Valid(), "NaN marks a missing value")
}

func TestExtractColumn(t *testing.T) {
	matrix := [][]Cell{
		{TextCell("a"), NumCell(10)},
		{TextCell("b")},
		{TextCell("c"), NullCell()},
		{TextCell("d"), NumCell(12)},
	}
	obs := ExtractColumn(matrix, 1)
	assert(t, len(obs) == 4, "row count")
	assert(t, *obs[0].Value == 10 && !obs[1].Valid() && !obs[2].Valid() && *obs[3].Value == 12, "column values")
	assert(t, obs[3].Index == 3, "index is the row position")

	obs = ExtractColumn(matrix, 5)
	assert(t, len(Values(obs)) == 0, "out of range column is all missing")
}

func TestCellJSON(t *testing.T) {
	var row []Cell
	errNil(t, json.Unmarshal([]byte(`[
		{"qNum": 12.5, "qText": "12.5", "qIsNull": false},
		{"qNum": "NaN", "qText": "-", "qIsNull": true},
		{"qNum": "NaN", "qText": "Sweden"},
		{"qText": "no number"},
		{"qNum": "7", "qText": "7"}
	]`), &row))

	obs := Extract(row)
	assert(t, *obs[0].Value == 12.5, "numeric qNum")
	assert(t, !obs[1].Valid() && row[1].IsNull, "null cell")
	assert(t, !obs[2].Valid() && row[2].Text == "Sweden", "text cell")
	assert(t, !obs[3].Valid(), "missing qNum")
	assert(t, *obs[4].Value == 7, "numeric string qNum")

	buf, err := json.Marshal(row[1])
	errNil(t, err)
	assert(t, string(buf) == `{"qNum":"NaN","qText":"-","qIsNull":true}`, "NaN marshals as string, got %s", string(buf))
}

// assert fails the test if the condition is false.
func assert(tb testing.TB, condition bool, msg string, v ...interface{}) {
	if !condition {
		_, file, line, _ := runtime.Caller(1)
		fmt.Printf("\033[31m%s:%d: "+msg+"\033[39m\n\n", append([]interface{}{filepath.Base(file), line}, v...)...)
		tb.FailNow()
	}
}

// test if an err is not nil.
func errNil(tb testing.TB, err error) {
	if err != nil {
		_, file, line, _ := runtime.Caller(1)
		fmt.Printf("\033[31m%s:%d: unexpected error: %s\033[39m\n\n", filepath.Base(file), line, err.Error())
		tb.FailNow()
	}
}
