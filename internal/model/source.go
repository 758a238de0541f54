package model

// Path represents a file system path.
type Path string

// SourceFile holds the contents of a PHP source file split into lines
// without their end-of-line markers.
type SourceFile struct {
	Path  Path
	Lines []string
}

// LinesCount returns the number of physical lines in the file.
func (s SourceFile) LinesCount() int {
	return len(s.Lines)
}

// Line returns the contents of the 1-based line number, or false when the
// line does not exist.
func (s SourceFile) Line(number int) (string, bool) {
	if number < 1 || number > len(s.Lines) {
		return "", false
	}

	return s.Lines[number-1], true
}
