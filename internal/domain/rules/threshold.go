package rules

import (
	"fmt"
	"strings"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// ThresholdRule flags methods whose coverage is below a minimum percentage.
type ThresholdRule struct {
	minCoverage         int
	minExecutableLines  int
	minChangePercentage int
	requireAnnotation   string
}

// ThresholdOption customises a ThresholdRule.
type ThresholdOption func(*ThresholdRule)

// WithMinExecutableLines ignores methods with fewer executable lines.
func WithMinExecutableLines(lines int) ThresholdOption {
	return func(r *ThresholdRule) {
		r.minExecutableLines = lines
	}
}

// WithMinChangePercentage ignores methods changed less than the given
// percentage. It only applies in patch mode.
func WithMinChangePercentage(percentage int) ThresholdOption {
	return func(r *ThresholdRule) {
		r.minChangePercentage = percentage
	}
}

// WithRequiredAnnotation limits the rule to methods whose own doc comment or
// the one of their declaring type carries the tag.
func WithRequiredAnnotation(tag string) ThresholdOption {
	return func(r *ThresholdRule) {
		r.requireAnnotation = strings.TrimPrefix(strings.TrimSpace(tag), "@")
	}
}

// NewThresholdRule validates the parameters and builds the rule.
func NewThresholdRule(minCoverage int, opts ...ThresholdOption) (*ThresholdRule, error) {
	rule := &ThresholdRule{minCoverage: minCoverage}
	for _, opt := range opts {
		opt(rule)
	}

	if err := rule.validate(); err != nil {
		return nil, err
	}

	return rule, nil
}

func (r *ThresholdRule) validate() error {
	if r.minCoverage < 0 || r.minCoverage > 100 {
		return m.Errorf(m.ErrConfiguration, "min_coverage must be between 0 and 100, got %d", r.minCoverage)
	}

	if r.minChangePercentage < 0 || r.minChangePercentage > 100 {
		return m.Errorf(m.ErrConfiguration, "min_change_percentage must be between 0 and 100, got %d", r.minChangePercentage)
	}

	if r.minExecutableLines < 0 {
		return m.Errorf(m.ErrConfiguration, "min_executable_lines must not be negative, got %d", r.minExecutableLines)
	}

	return nil
}

// Inspect implements Rule.
func (r *ThresholdRule) Inspect(block *m.CodeBlock, ctx m.InspectionContext) *m.CoverageError {
	if block.Kind != m.BlockClassMethod {
		return nil
	}

	executable := block.ExecutableLinesCount()
	if executable == 0 || executable < r.minExecutableLines {
		return nil
	}

	if ctx.PatchMode && block.ChangePercentage() < r.minChangePercentage {
		return nil
	}

	coverage := block.CoveragePercentage()
	if coverage >= r.minCoverage {
		return nil
	}

	if r.requireAnnotation != "" && !ctx.HasAnnotation(r.requireAnnotation) {
		return nil
	}

	return m.NewCoverageError(fmt.Sprintf(
		"This method has %d%% coverage, the minimum is %d%% (%d of %d executable lines covered).",
		coverage, r.minCoverage, block.CoveredLinesCount(), executable))
}
