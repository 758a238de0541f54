package domain

import (
	"github.com/mouse-blink/coverguard/internal/phpsource"
)

// LineSet is a set of 1-based line numbers.
type LineSet map[int]struct{}

// Contains reports whether the line is in the set.
func (s LineSet) Contains(line int) bool {
	_, ok := s[line]
	return ok
}

func (s LineSet) addRange(from, to int) {
	for line := from; line <= to; line++ {
		s[line] = struct{}{}
	}
}

// LineExcluder marks lines that must not count as executable even when the
// coverage report lists them.
type LineExcluder interface {
	ExcludedLines(file *phpsource.File) LineSet
}

// MultilineCallExcluder collapses the argument list of a call spanning
// several lines onto the line of its opening parenthesis. Lines of closures,
// arrow functions, anonymous classes and match expressions passed as
// arguments stay executable.
type MultilineCallExcluder struct{}

// NewMultilineCallExcluder constructs a MultilineCallExcluder.
func NewMultilineCallExcluder() *MultilineCallExcluder {
	return &MultilineCallExcluder{}
}

// ExcludedLines implements LineExcluder.
func (e *MultilineCallExcluder) ExcludedLines(file *phpsource.File) LineSet {
	excluded := LineSet{}

	phpsource.Inspect(file.Root, func(node *phpsource.Node) bool {
		if node == nil || node.Kind != phpsource.NodeCall || node.ArgsEndLine <= node.ArgsStartLine {
			return true
		}

		kept := LineSet{}

		phpsource.Inspect(node, func(inner *phpsource.Node) bool {
			if inner == nil || inner == node {
				return true
			}

			if inner.IsFunctionLike() || inner.Kind == phpsource.NodeMatch {
				kept.addRange(inner.StartLine, inner.EndLine)
				return false
			}

			return true
		})

		for line := node.ArgsStartLine + 1; line <= node.ArgsEndLine; line++ {
			if !kept.Contains(line) {
				excluded[line] = struct{}{}
			}
		}

		return true
	})

	return excluded
}

// ThrowExcluder drops `throw new X(...)` statements whose class is in the
// allow-list, including every line of a multi-line constructor call.
type ThrowExcluder struct {
	classes []string
}

// NewThrowExcluder constructs a ThrowExcluder for the given class names.
// Names are compared case-insensitively without a leading backslash.
func NewThrowExcluder(classes []string) *ThrowExcluder {
	return &ThrowExcluder{classes: classes}
}

// ExcludedLines implements LineExcluder.
func (e *ThrowExcluder) ExcludedLines(file *phpsource.File) LineSet {
	excluded := LineSet{}
	if len(e.classes) == 0 {
		return excluded
	}

	phpsource.Inspect(file.Root, func(node *phpsource.Node) bool {
		if node == nil || node.Kind != phpsource.NodeThrow || node.ThrownClass == "" {
			return true
		}

		for _, class := range e.classes {
			if phpsource.SameClassName(node.ThrownClass, class) {
				excluded.addRange(node.StartLine, node.EndLine)
				break
			}
		}

		return true
	})

	return excluded
}

// excludedLines merges the lines of every excluder.
func excludedLines(file *phpsource.File, excluders []LineExcluder) LineSet {
	merged := LineSet{}

	for _, excluder := range excluders {
		for line := range excluder.ExcludedLines(file) {
			merged[line] = struct{}{}
		}
	}

	return merged
}
