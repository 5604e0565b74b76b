package rules

import (
	"github.com/apex/log"

	"github.com/datastax/process-control-monitor/src/series"
	"github.com/datastax/process-control-monitor/src/stats"
)

// Direction is the side of the centerline a flagged point is out of control on
type Direction int

const (
	// Unspecified is neither side
	Unspecified Direction = iota
	// Above is above the centerline
	Above
	// Below is below the centerline
	Below
)

func (d Direction) String() string {
	switch d {
	case Above:
		return "above"
	case Below:
		return "below"
	}
	return "unspecified"
}

// MarshalText writes the direction name
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Name identifies the rule that flagged a point
type Name string

const (
	// SinglePointRule is rule 1
	SinglePointRule Name = "single_point"
	// TwoOfThreeRule is rule 2
	TwoOfThreeRule Name = "two_of_three"
	// FourOfFiveRule is rule 3
	FourOfFiveRule Name = "four_of_five"
	// RunRule is rule 4
	RunRule Name = "run"
	// ExpressionRule is the custom expression rule
	ExpressionRule Name = "expression"
)

// FlaggedPoint is an out of control position in the observation sequence
type FlaggedPoint struct {
	Index     int       `json:"index"`
	Direction Direction `json:"direction"`
	Rule      Name      `json:"rule"`
}

// Evaluator runs a fixed rule configuration. It holds no per evaluation state
// and can be shared across goroutines.
type Evaluator struct {
	config     Config
	expression *Expression
}

// NewEvaluator validates the configuration and compiles the custom expression
func NewEvaluator(config Config) (*Evaluator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	e := &Evaluator{config: config}
	if config.Expression != "" {
		expression, err := CompileExpression(config.Expression)
		if err != nil {
			return nil, err
		}
		e.expression = expression
	}
	return e, nil
}

// Config returns the rule configuration
func (e *Evaluator) Config() Config {
	return e.config
}

// Evaluate runs every enabled rule independently and returns the union of the flagged points.
// The same index can be flagged by more than one rule.
func (e *Evaluator) Evaluate(observations []series.Observation, limits stats.ControlLimits) []FlaggedPoint {
	points := []FlaggedPoint{}
	if len(observations) == 0 {
		return points
	}

	if e.config.SinglePointBeyondLimits {
		points = append(points, SinglePointBeyond(observations, limits)...)
	}
	if e.config.TwoOfThreeBeyondTwoSigma {
		w := e.config.twoOfThree()
		points = append(points, tag(XOfYBeyond(observations, limits.Mean, limits.Upper(w.Sigma), limits.Lower(w.Sigma), w.Count, w.Window), TwoOfThreeRule)...)
	}
	if e.config.FourOfFiveBeyondOneSigma {
		w := e.config.fourOfFive()
		points = append(points, tag(XOfYBeyond(observations, limits.Mean, limits.Upper(w.Sigma), limits.Lower(w.Sigma), w.Count, w.Window), FourOfFiveRule)...)
	}
	if e.config.EightInARow {
		points = append(points, RunOfN(observations, limits.Mean, e.config.runLength())...)
	}
	if e.expression != nil {
		points = append(points, e.expression.Flag(observations, limits)...)
	}
	return points
}

// Evaluate is a one-off evaluation. An invalid configuration is logged and flags nothing.
func Evaluate(observations []series.Observation, limits stats.ControlLimits, config Config) []FlaggedPoint {
	e, err := NewEvaluator(config)
	if err != nil {
		log.Errorf("invalid rule configuration %v", err)
		return []FlaggedPoint{}
	}
	return e.Evaluate(observations, limits)
}

func tag(points []FlaggedPoint, rule Name) []FlaggedPoint {
	for i := range points {
		points[i].Rule = rule
	}
	return points
}

// SinglePointBeyond flags every point outside the three sigma control limits
func SinglePointBeyond(observations []series.Observation, limits stats.ControlLimits) []FlaggedPoint {
	points := []FlaggedPoint{}
	for _, o := range observations {
		if !o.Valid() {
			continue
		}
		if *o.Value > limits.ThreeSigmaUpper {
			points = append(points, FlaggedPoint{Index: o.Index, Direction: Above, Rule: SinglePointRule})
		} else if *o.Value < limits.ThreeSigmaLower {
			points = append(points, FlaggedPoint{Index: o.Index, Direction: Below, Rule: SinglePointRule})
		}
	}
	return points
}

// XOfYBeyond flags a point whenever, after it enters the trailing window of y points,
// exactly x points of the window sit beyond the sigma bound on one side of the mean.
// The point is flagged even if it is itself in control, the direction is the side that
// holds x points. Only that position is reported, not the whole window.
func XOfYBeyond(observations []series.Observation, mean, upper, lower float64, x, y int) []FlaggedPoint {
	points := []FlaggedPoint{}
	if x < 1 || y < 1 {
		return points
	}

	window := make([]Direction, 0, y)
	countAbove, countBelow := 0, 0
	for _, o := range observations {
		if !o.Valid() {
			continue
		}
		v := *o.Value

		side := Unspecified
		if v > mean && v > upper {
			side = Above
			countAbove++
		} else if v < mean && v < lower {
			side = Below
			countBelow++
		}
		window = append(window, side)

		switch {
		case countAbove == x && (countBelow != x || side != Below):
			points = append(points, FlaggedPoint{Index: o.Index, Direction: Above})
		case countBelow == x:
			points = append(points, FlaggedPoint{Index: o.Index, Direction: Below})
		}

		if len(window) == y {
			switch window[0] {
			case Above:
				countAbove--
			case Below:
				countBelow--
			}
			window = append(window[:0], window[1:]...)
		}
	}
	return points
}

// RunOfN flags a point that completes a run of n successive points on one side of the mean.
// A point on the centerline breaks any run.
func RunOfN(observations []series.Observation, mean float64, n int) []FlaggedPoint {
	points := []FlaggedPoint{}
	if n < 1 {
		return points
	}

	run := make([]Direction, 0, n)
	runAbove, runBelow := 0, 0
	for _, o := range observations {
		if !o.Valid() {
			continue
		}
		v := *o.Value

		switch {
		case v > mean:
			if runBelow > 0 {
				run = run[:0]
				runBelow = 0
			}
			run = append(run, Above)
			runAbove++
		case v < mean:
			if runAbove > 0 {
				run = run[:0]
				runAbove = 0
			}
			run = append(run, Below)
			runBelow++
		default:
			run = run[:0]
			runAbove, runBelow = 0, 0
		}

		if runAbove == n {
			points = append(points, FlaggedPoint{Index: o.Index, Direction: Above, Rule: RunRule})
		} else if runBelow == n {
			points = append(points, FlaggedPoint{Index: o.Index, Direction: Below, Rule: RunRule})
		}

		if len(run) == n {
			switch run[0] {
			case Above:
				runAbove--
			case Below:
				runBelow--
			}
			run = append(run[:0], run[1:]...)
		}
	}
	return points
}
