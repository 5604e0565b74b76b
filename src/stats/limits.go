package stats

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is matched by every InvalidInputError
var ErrInvalidInput = errors.New("invalid statistical input")

// InvalidInputError reports a non-finite or negative statistical aggregate
type InvalidInputError struct {
	Field string
	Value float64
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s %v", e.Field, e.Value)
}

// Is allows errors.Is(err, ErrInvalidInput)
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ControlLimits are the centerline and sigma bands of a control chart.
// It is computed once per evaluation and must not be mutated afterwards.
type ControlLimits struct {
	Mean            float64 `json:"mean"`
	StdDev          float64 `json:"stdDev"`
	OneSigmaUpper   float64 `json:"oneSigmaUpper"`
	OneSigmaLower   float64 `json:"oneSigmaLower"`
	TwoSigmaUpper   float64 `json:"twoSigmaUpper"`
	TwoSigmaLower   float64 `json:"twoSigmaLower"`
	ThreeSigmaUpper float64 `json:"threeSigmaUpper"`
	ThreeSigmaLower float64 `json:"threeSigmaLower"`
}

// ComputeLimits derives the 1σ, 2σ and 3σ bands from the mean and the standard deviation
func ComputeLimits(mean, stdDev float64) (ControlLimits, error) {
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return ControlLimits{}, &InvalidInputError{Field: "mean", Value: mean}
	}
	if math.IsNaN(stdDev) || math.IsInf(stdDev, 0) || stdDev < 0 {
		return ControlLimits{}, &InvalidInputError{Field: "standard deviation", Value: stdDev}
	}

	return ControlLimits{
		Mean:            mean,
		StdDev:          stdDev,
		OneSigmaUpper:   mean + stdDev,
		OneSigmaLower:   mean - stdDev,
		TwoSigmaUpper:   mean + 2*stdDev,
		TwoSigmaLower:   mean - 2*stdDev,
		ThreeSigmaUpper: mean + 3*stdDev,
		ThreeSigmaLower: mean - 3*stdDev,
	}, nil
}

// Upper returns the upper k sigma bound, k is one of 1, 2 or 3.
// Any other k returns the centerline.
func (c ControlLimits) Upper(k int) float64 {
	switch k {
	case 1:
		return c.OneSigmaUpper
	case 2:
		return c.TwoSigmaUpper
	case 3:
		return c.ThreeSigmaUpper
	}
	return c.Mean
}

// Lower returns the lower k sigma bound
func (c ControlLimits) Lower(k int) float64 {
	switch k {
	case 1:
		return c.OneSigmaLower
	case 2:
		return c.TwoSigmaLower
	case 3:
		return c.ThreeSigmaLower
	}
	return c.Mean
}

// UCL is the upper control limit
func (c ControlLimits) UCL() float64 {
	return c.ThreeSigmaUpper
}

// LCL is the lower control limit
func (c ControlLimits) LCL() float64 {
	return c.ThreeSigmaLower
}
