package series

import (
	"math"
	"time"

	"github.com/datastax/process-control-monitor/src/stats"
)

// ColumnType is how a dimension column is laid along the chart axis
type ColumnType string

const (
	// StringColumn is a discrete text dimension
	StringColumn ColumnType = "string"
	// NumberColumn is an integer or numeric dimension
	NumberColumn ColumnType = "number"
	// DateColumn is a date dimension carried as a host serial day number
	DateColumn ColumnType = "date"

	// serial day number of 1970-01-01 in the host calendar
	unixEpochSerial = 25569
)

// DimensionType picks the column type from the host dimension tags
func DimensionType(tags []string) ColumnType {
	has := func(tag string) bool {
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
		return false
	}

	switch {
	case has("$date"):
		return DateColumn
	case has("$integer"), has("$numeric"):
		return NumberColumn
	}
	return StringColumn
}

// SerialToTime converts a host serial day number into UTC time.
// It returns false for serials outside the years 1 to 9999.
func SerialToTime(serial float64) (time.Time, bool) {
	millis := math.Round((serial - unixEpochSerial) * 86400 * 1000)
	if math.IsNaN(millis) || millis >= math.MaxInt64 || millis <= math.MinInt64 {
		return time.Time{}, false
	}
	t := time.UnixMilli(int64(millis)).UTC()
	if t.Year() < 1 || t.Year() > 9999 {
		return time.Time{}, false
	}
	return t, true
}

// DimensionLabel is the axis value of one row
type DimensionLabel struct {
	Index int         `json:"index"`
	Text  string      `json:"text"`
	Value interface{} `json:"value,omitempty"`
}

// DimensionLabels reads the first column of the matrix as axis labels.
// Dates become time.Time, numbers float64, and everything else stays text.
// A date serial out of range keeps only its text.
func DimensionLabels(matrix [][]Cell, columnType ColumnType) []DimensionLabel {
	labels := make([]DimensionLabel, len(matrix))
	for i, row := range matrix {
		labels[i] = DimensionLabel{Index: i}
		if len(row) == 0 {
			continue
		}
		cell := row[0]
		labels[i].Text = cell.Text
		v, ok := cell.Numeric()
		if !ok {
			continue
		}
		switch columnType {
		case DateColumn:
			if t, ok := SerialToTime(v); ok {
				labels[i].Value = t
			}
		case NumberColumn:
			labels[i].Value = v
		}
	}
	return labels
}

// Range is the value span the chart viewport has to cover
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Viewport spans the three sigma band and every observed value
func Viewport(limits stats.ControlLimits, observations []Observation) Range {
	r := Range{Min: limits.ThreeSigmaLower, Max: limits.ThreeSigmaUpper}
	for _, v := range Values(observations) {
		r.Min = math.Min(r.Min, v)
		r.Max = math.Max(r.Max, v)
	}
	return r
}
