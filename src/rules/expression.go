package rules

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/datastax/process-control-monitor/src/series"
	"github.com/datastax/process-control-monitor/src/stats"
)

// Expression is a compiled custom single point rule.
// The expression must evaluate to a boolean, it can reference
// index, value, mean, stdDev, zscore, ucl, lcl, sigma1Upper, sigma1Lower, sigma2Upper and sigma2Lower.
//
//	zscore > 2.5 || value < 0
type Expression struct {
	source  string
	program *vm.Program
}

func pointEnv(index int, value float64, limits stats.ControlLimits) map[string]interface{} {
	zscore := 0.0
	if limits.StdDev > 0 {
		zscore = (value - limits.Mean) / limits.StdDev
	}
	return map[string]interface{}{
		"index":       index,
		"value":       value,
		"mean":        limits.Mean,
		"stdDev":      limits.StdDev,
		"zscore":      zscore,
		"ucl":         limits.ThreeSigmaUpper,
		"lcl":         limits.ThreeSigmaLower,
		"sigma1Upper": limits.OneSigmaUpper,
		"sigma1Lower": limits.OneSigmaLower,
		"sigma2Upper": limits.TwoSigmaUpper,
		"sigma2Lower": limits.TwoSigmaLower,
	}
}

// CompileExpression type checks a custom rule against the point environment
func CompileExpression(source string) (*Expression, error) {
	program, err := expr.Compile(source, expr.Env(pointEnv(0, 0, stats.ControlLimits{})), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile rule expression %q: %w", source, err)
	}
	return &Expression{source: source, program: program}, nil
}

// String returns the expression source
func (e *Expression) String() string {
	return e.source
}

// Flag evaluates the expression against every non missing point.
// A runtime error on a point is treated as not flagged.
func (e *Expression) Flag(observations []series.Observation, limits stats.ControlLimits) []FlaggedPoint {
	points := []FlaggedPoint{}
	for _, o := range observations {
		if !o.Valid() {
			continue
		}
		result, err := expr.Run(e.program, pointEnv(o.Index, *o.Value, limits))
		if err != nil {
			continue
		}
		if flagged, ok := result.(bool); !ok || !flagged {
			continue
		}

		direction := Unspecified
		if *o.Value > limits.Mean {
			direction = Above
		} else if *o.Value < limits.Mean {
			direction = Below
		}
		points = append(points, FlaggedPoint{Index: o.Index, Direction: direction, Rule: ExpressionRule})
	}
	return points
}
