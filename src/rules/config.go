package rules

import "fmt"

const (
	// DefaultRunLength is the Western Electric run of eight on one side of the centerline
	DefaultRunLength = 8
)

// WindowRule is an "X of Y successive points beyond kσ on the same side" rule
type WindowRule struct {
	Count  int `json:"count"`
	Window int `json:"window"`
	Sigma  int `json:"sigma"`
}

var (
	// TwoOfThree is two of three successive points beyond 2σ
	TwoOfThree = WindowRule{Count: 2, Window: 3, Sigma: 2}
	// FourOfFive is four of five successive points beyond 1σ
	FourOfFive = WindowRule{Count: 4, Window: 5, Sigma: 1}
)

func (w WindowRule) validate(name string) error {
	if w.Count < 1 || w.Window < 1 {
		return fmt.Errorf("%s requires a positive count and window, got %d of %d", name, w.Count, w.Window)
	}
	if w.Count > w.Window {
		return fmt.Errorf("%s count %d exceeds its window %d", name, w.Count, w.Window)
	}
	if w.Sigma < 1 || w.Sigma > 3 {
		return fmt.Errorf("%s sigma must be 1, 2 or 3, got %d", name, w.Sigma)
	}
	return nil
}

// Config enumerates the enabled detection rules.
// The zero value disables every rule.
type Config struct {
	// Rule 1, a single point outside the three sigma control limits
	SinglePointBeyondLimits bool `json:"singlePointOutsideUCLLCL"`
	// Rule 2, two of three successive points beyond 2σ on the same side
	TwoOfThreeBeyondTwoSigma bool `json:"twoOfThreeSuccessivePoints"`
	// Rule 3, four of five successive points beyond 1σ on the same side
	FourOfFiveBeyondOneSigma bool `json:"fourOutOfFivePoints"`
	// Rule 4, a run of points on the same side of the centerline
	EightInARow bool `json:"eightInARowOnSameSideOfCenter"`

	// optional overrides of the rule parameters
	TwoOfThree *WindowRule `json:"twoOfThree,omitempty"`
	FourOfFive *WindowRule `json:"fourOfFive,omitempty"`
	RunLength  int         `json:"runLength,omitempty"`

	// Expression is an optional custom single point rule, see CompileExpression
	Expression string `json:"expression,omitempty"`
}

// AllRules enables the four Western Electric rules with their standard parameters
func AllRules() Config {
	return Config{
		SinglePointBeyondLimits:  true,
		TwoOfThreeBeyondTwoSigma: true,
		FourOfFiveBeyondOneSigma: true,
		EightInARow:              true,
	}
}

func (c Config) twoOfThree() WindowRule {
	if c.TwoOfThree != nil {
		return *c.TwoOfThree
	}
	return TwoOfThree
}

func (c Config) fourOfFive() WindowRule {
	if c.FourOfFive != nil {
		return *c.FourOfFive
	}
	return FourOfFive
}

func (c Config) runLength() int {
	if c.RunLength == 0 {
		return DefaultRunLength
	}
	return c.RunLength
}

// Enabled returns whether any rule is turned on
func (c Config) Enabled() bool {
	return c.SinglePointBeyondLimits || c.TwoOfThreeBeyondTwoSigma || c.FourOfFiveBeyondOneSigma ||
		c.EightInARow || c.Expression != ""
}

// Validate checks the rule parameters
func (c Config) Validate() error {
	if err := c.twoOfThree().validate("twoOfThree"); err != nil {
		return err
	}
	if err := c.fourOfFive().validate("fourOfFive"); err != nil {
		return err
	}
	if c.runLength() < 1 {
		return fmt.Errorf("runLength must be positive, got %d", c.RunLength)
	}
	if c.Expression != "" {
		if _, err := CompileExpression(c.Expression); err != nil {
			return err
		}
	}
	return nil
}
