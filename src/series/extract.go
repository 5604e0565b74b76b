package series

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Cell is a single hypercube cell as delivered by the host
type Cell struct {
	// Num is NaN when the cell carries no numeric value
	Num    float64 `json:"qNum"`
	Text   string  `json:"qText"`
	IsNull bool    `json:"qIsNull"`
}

// UnmarshalJSON accepts qNum either as a number or as the string "NaN"
func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw struct {
		Num    json.RawMessage `json:"qNum"`
		Text   string          `json:"qText"`
		IsNull bool            `json:"qIsNull"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Text = raw.Text
	c.IsNull = raw.IsNull
	c.Num = parseNum(raw.Num)
	return nil
}

func parseNum(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return math.NaN()
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return math.NaN()
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return math.NaN()
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return math.NaN()
	}
	return f
}

// NumCell builds a numeric cell
func NumCell(v float64) Cell {
	return Cell{Num: v, Text: strconv.FormatFloat(v, 'f', -1, 64)}
}

// NullCell builds a missing cell
func NullCell() Cell {
	return Cell{Num: math.NaN(), Text: "-", IsNull: true}
}

// TextCell builds a cell that only carries display text
func TextCell(text string) Cell {
	return Cell{Num: math.NaN(), Text: text}
}

// Numeric returns the cell value and whether it can take part in rule evaluation
func (c Cell) Numeric() (float64, bool) {
	if c.IsNull || math.IsNaN(c.Num) || math.IsInf(c.Num, 0) {
		return 0, false
	}
	return c.Num, true
}

// Observation is one measured point along the dimension axis.
// Value is nil for a missing or non-numeric source cell.
type Observation struct {
	Index int      `json:"index"`
	Value *float64 `json:"value"`
}

// Valid returns whether the observation carries a value
func (o Observation) Valid() bool {
	return o.Value != nil
}

// NewObservations builds observations from plain numbers, NaN marks a missing value
func NewObservations(values ...float64) []Observation {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = NumCell(v)
	}
	return Extract(cells)
}

// Extract maps cells into observations, keeping each cell's position as the index
// even when the value is missing.
func Extract(cells []Cell) []Observation {
	observations := make([]Observation, len(cells))
	for i, cell := range cells {
		observations[i] = Observation{Index: i}
		if v, ok := cell.Numeric(); ok {
			observations[i].Value = &v
		}
	}
	return observations
}

// ExtractColumn extracts one measure column of a row-major matrix.
// Rows without the column become missing observations.
func ExtractColumn(matrix [][]Cell, column int) []Observation {
	cells := make([]Cell, len(matrix))
	for i, row := range matrix {
		if column >= 0 && column < len(row) {
			cells[i] = row[column]
		} else {
			cells[i] = NullCell()
		}
	}
	return Extract(cells)
}

// Values returns the non-missing values in order
func Values(observations []Observation) []float64 {
	values := make([]float64, 0, len(observations))
	for _, o := range observations {
		if o.Valid() {
			values = append(values, *o.Value)
		}
	}
	return values
}

// MarshalJSON writes a missing number as the string "NaN" the same way the host does
func (c Cell) MarshalJSON() ([]byte, error) {
	var num interface{} = c.Num
	if math.IsNaN(c.Num) || math.IsInf(c.Num, 0) {
		num = "NaN"
	}
	return json.Marshal(struct {
		Num    interface{} `json:"qNum"`
		Text   string      `json:"qText"`
		IsNull bool        `json:"qIsNull"`
	}{num, c.Text, c.IsNull})
}
