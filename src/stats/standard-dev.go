package stats

import "math"

// StandardDeviation accumulates samples to calculate the mean and standard deviation.
// It stands in for the host's Avg() and Stdev() aggregates when a chart does not supply them.
type StandardDeviation struct {
	Name  string
	Count int
	Sum   float64
	Mean  float64
	// m2 is the running sum of squared distances from the mean (Welford)
	m2 float64
}

// NewStandardDeviation creates a new standard dev object
func NewStandardDeviation(name string) StandardDeviation {
	return StandardDeviation{
		Name: name,
	}
}

// Push adds a sample and returns the current sample σ and mean.
// Non-finite numbers are ignored.
func (sd *StandardDeviation) Push(num float64) (std, mean float64) {
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return sd.Sample(), sd.Mean
	}
	sd.Count++
	sd.Sum += num
	delta := num - sd.Mean
	sd.Mean += delta / float64(sd.Count)
	sd.m2 += delta * (num - sd.Mean)

	return sd.Sample(), sd.Mean
}

// Population returns the population standard deviation σ
func (sd *StandardDeviation) Population() float64 {
	if sd.Count == 0 {
		return 0
	}
	return math.Sqrt(math.Max(sd.m2, 0) / float64(sd.Count))
}

// Sample returns the n-1 corrected standard deviation, the same as the host Stdev() aggregate.
// It is 0 with fewer than two samples.
func (sd *StandardDeviation) Sample() float64 {
	if sd.Count < 2 {
		return 0
	}
	return math.Sqrt(math.Max(sd.m2, 0) / float64(sd.Count-1))
}

// Aggregate returns the mean and the sample standard deviation of values
func Aggregate(values []float64) (mean, std float64) {
	sd := NewStandardDeviation("aggregate")
	for _, v := range values {
		sd.Push(v)
	}
	return sd.Mean, sd.Sample()
}
