package rules

import (
	"testing"

	"github.com/datastax/process-control-monitor/src/series"
)

func TestExpressionRule(t *testing.T) {
	e, err := CompileExpression("zscore > 2 || zscore < -2")
	errNil(t, err)
	assert(t, e.String() == "zscore > 2 || zscore < -2", "source kept")

	points := e.Flag(series.NewObservations(0, 2.5, nan, -2.5, 1), limitsOf(t, 0, 1))
	assert(t, len(points) == 2, "two points %+v", points)
	assert(t, points[0].Index == 1 && points[0].Direction == Above && points[0].Rule == ExpressionRule, "above %+v", points[0])
	assert(t, points[1].Index == 3 && points[1].Direction == Below, "below %+v", points[1])
}

func TestExpressionEnvironment(t *testing.T) {
	e, err := CompileExpression("index == 2 && value == mean && stdDev == 2 && ucl == 16 && lcl == 4 && sigma2Upper == 14")
	errNil(t, err)

	points := e.Flag(series.NewObservations(10, 10, 10), limitsOf(t, 10, 2))
	assert(t, len(points) == 1 && points[0].Index == 2, "only index 2 %+v", points)
	assert(t, points[0].Direction == Unspecified, "centerline point has no side")
}

func TestExpressionZeroStdDev(t *testing.T) {
	e, err := CompileExpression("zscore != 0")
	errNil(t, err)
	assert(t, len(e.Flag(series.NewObservations(1, 2, 3), limitsOf(t, 2, 0))) == 0, "zscore is 0 without spread")
}
