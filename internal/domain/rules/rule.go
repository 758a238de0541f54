// Package rules holds the coverage rules evaluated against code blocks.
package rules

import (
	"strings"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// Rule inspects a single block and returns a violation or nil.
// Implementations must not mutate the block or the context.
type Rule interface {
	Inspect(block *m.CodeBlock, ctx m.InspectionContext) *m.CoverageError
}

// RuleFunc adapts a plain function to the Rule interface.
type RuleFunc func(block *m.CodeBlock, ctx m.InspectionContext) *m.CoverageError

// Inspect implements Rule.
func (f RuleFunc) Inspect(block *m.CodeBlock, ctx m.InspectionContext) *m.CoverageError {
	return f(block, ctx)
}

// Rule types accepted in configuration.
const (
	TypeDefault   = "default"
	TypeThreshold = "threshold"
)

// Config is one entry of the `rules` configuration list.
type Config struct {
	Type                string `mapstructure:"type" yaml:"type"`
	MinExecutableLines  *int   `mapstructure:"min_executable_lines" yaml:"min_executable_lines,omitempty"`
	MinCoverage         *int   `mapstructure:"min_coverage" yaml:"min_coverage,omitempty"`
	MinChangePercentage *int   `mapstructure:"min_change_percentage" yaml:"min_change_percentage,omitempty"`
	RequireAnnotation   string `mapstructure:"require_annotation" yaml:"require_annotation,omitempty"`
}

// FromConfig builds the rules in configuration order. An empty list yields
// the default rule alone.
func FromConfig(configs []Config) ([]Rule, error) {
	if len(configs) == 0 {
		return []Rule{NewDefaultRule()}, nil
	}

	built := make([]Rule, 0, len(configs))

	for i, cfg := range configs {
		rule, err := fromConfig(cfg)
		if err != nil {
			return nil, m.Errorf(m.ErrConfiguration, "rules[%d]: %v", i, err)
		}

		built = append(built, rule)
	}

	return built, nil
}

func fromConfig(cfg Config) (Rule, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case TypeDefault, "":
		if cfg.MinCoverage != nil || cfg.MinChangePercentage != nil || cfg.RequireAnnotation != "" {
			return nil, m.Errorf(m.ErrConfiguration, "the default rule only accepts min_executable_lines")
		}

		if cfg.MinExecutableLines == nil {
			return NewDefaultRule(), nil
		}

		return NewDefaultRuleWithMinimum(*cfg.MinExecutableLines)
	case TypeThreshold:
		if cfg.MinCoverage == nil {
			return nil, m.Errorf(m.ErrConfiguration, "the threshold rule requires min_coverage")
		}

		opts := []ThresholdOption{}
		if cfg.MinExecutableLines != nil {
			opts = append(opts, WithMinExecutableLines(*cfg.MinExecutableLines))
		}

		if cfg.MinChangePercentage != nil {
			opts = append(opts, WithMinChangePercentage(*cfg.MinChangePercentage))
		}

		if cfg.RequireAnnotation != "" {
			opts = append(opts, WithRequiredAnnotation(cfg.RequireAnnotation))
		}

		return NewThresholdRule(*cfg.MinCoverage, opts...)
	default:
		return nil, m.Errorf(m.ErrConfiguration, "unknown rule type %q (expected %s or %s)", cfg.Type, TypeDefault, TypeThreshold)
	}
}
