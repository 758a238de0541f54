// Package model defines the data structures shared by the coverage pipeline.
package model

import "sort"

// ExecutableLine is a line the coverage tool considers executable together
// with the number of times it ran.
type ExecutableLine struct {
	Number int
	Hits   int
}

// FileCoverage holds the executable lines reported for a single file.
type FileCoverage struct {
	FilePath        string
	ExecutableLines []ExecutableLine

	// ExpectedLinesCount is the total number of lines the file had when the
	// report was generated, nil when the format does not record it.
	ExpectedLinesCount *int
}

// LineHits returns the executable lines keyed by line number.
func (fc FileCoverage) LineHits() map[int]int {
	hits := make(map[int]int, len(fc.ExecutableLines))
	for _, line := range fc.ExecutableLines {
		hits[line.Number] = line.Hits
	}

	return hits
}

// CoveredLinesCount returns the number of executable lines with at least one hit.
func (fc FileCoverage) CoveredLinesCount() int {
	covered := 0

	for _, line := range fc.ExecutableLines {
		if line.Hits > 0 {
			covered++
		}
	}

	return covered
}

// MaxLineNumber returns the highest executable line number, 0 for no lines.
func (fc FileCoverage) MaxLineNumber() int {
	highest := 0

	for _, line := range fc.ExecutableLines {
		if line.Number > highest {
			highest = line.Number
		}
	}

	return highest
}

// NewFileCoverage builds a FileCoverage from a line-to-hits map with lines
// sorted ascending.
func NewFileCoverage(filePath string, hits map[int]int, expectedLinesCount *int) FileCoverage {
	lines := make([]ExecutableLine, 0, len(hits))
	for number, count := range hits {
		lines = append(lines, ExecutableLine{Number: number, Hits: count})
	}

	sort.Slice(lines, func(i, j int) bool {
		return lines[i].Number < lines[j].Number
	})

	return FileCoverage{
		FilePath:           filePath,
		ExecutableLines:    lines,
		ExpectedLinesCount: expectedLinesCount,
	}
}

// SortFileCoverages orders coverage sets by file path.
func SortFileCoverages(files []FileCoverage) {
	sort.Slice(files, func(i, j int) bool {
		return files[i].FilePath < files[j].FilePath
	})
}

// PathMapping rewrites a coverage file path prefix.
type PathMapping struct {
	From string `mapstructure:"from" yaml:"from"`
	To   string `mapstructure:"to" yaml:"to"`
}
