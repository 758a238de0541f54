package coverage

import (
	m "github.com/mouse-blink/coverguard/internal/model"
)

// Merge combines coverage sets by summing hits per line per file. The
// expected line count of a file is the highest one recorded by any set.
// Files are returned sorted by path with lines ascending.
func Merge(sets [][]m.FileCoverage) []m.FileCoverage {
	set := newFileSet()

	for _, files := range sets {
		for _, file := range files {
			hits := set.file(file.FilePath)
			for _, line := range file.ExecutableLines {
				hits[line.Number] += line.Hits
			}

			if file.ExpectedLinesCount == nil {
				continue
			}

			if current := set.expected[file.FilePath]; current == nil || *file.ExpectedLinesCount > *current {
				set.setExpected(file.FilePath, *file.ExpectedLinesCount)
			}
		}
	}

	return set.result()
}
