package rules

import (
	"fmt"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// DefaultMinExecutableLines is the size below which the default rule stays quiet.
const DefaultMinExecutableLines = 5

// DefaultRule flags methods that have no covered line at all. In patch mode
// the method must also be entirely changed.
type DefaultRule struct {
	minExecutableLines int
}

// NewDefaultRule returns the default rule with its standard minimum size.
func NewDefaultRule() *DefaultRule {
	return &DefaultRule{minExecutableLines: DefaultMinExecutableLines}
}

// NewDefaultRuleWithMinimum returns the default rule with a custom minimum size.
func NewDefaultRuleWithMinimum(minExecutableLines int) (*DefaultRule, error) {
	if minExecutableLines < 0 {
		return nil, m.Errorf(m.ErrConfiguration, "min_executable_lines must not be negative, got %d", minExecutableLines)
	}

	return &DefaultRule{minExecutableLines: minExecutableLines}, nil
}

// Inspect implements Rule.
func (r *DefaultRule) Inspect(block *m.CodeBlock, ctx m.InspectionContext) *m.CoverageError {
	if block.Kind != m.BlockClassMethod {
		return nil
	}

	executable := block.ExecutableLinesCount()
	if executable < r.minExecutableLines || block.CoveragePercentage() != 0 {
		return nil
	}

	if ctx.PatchMode {
		if block.ChangePercentage() != 100 {
			return nil
		}

		return m.NewCoverageError(fmt.Sprintf(
			"This method is fully changed and fully untested (%d executable lines).", executable))
	}

	return m.NewCoverageError(fmt.Sprintf(
		"This method is fully untested (%d executable lines).", executable))
}
