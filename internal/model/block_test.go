package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func block(executable, covered int) *CodeBlock {
	b := &CodeBlock{Kind: BlockClassMethod, Parent: NoParent, ClassName: `App\Service`, MethodName: "run"}

	for i := 1; i <= executable; i++ {
		b.Lines = append(b.Lines, NewLineOfCode(i+10, true, i <= covered, false, ""))
	}

	return b
}

func TestCodeBlock_CoveragePercentage(t *testing.T) {
	tests := []struct {
		name       string
		executable int
		covered    int
		want       int
	}{
		{"no executable lines", 0, 0, 0},
		{"one of three", 3, 1, 33},
		{"two of three", 3, 2, 67},
		{"all", 3, 3, 100},
		{"none covered", 4, 0, 0},
		{"half rounds up", 8, 1, 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, block(tt.executable, tt.covered).CoveragePercentage())
		})
	}
}

func TestCodeBlock_Counts(t *testing.T) {
	b := &CodeBlock{
		Kind:   BlockIf,
		Parent: NoParent,
		Lines: []LineOfCode{
			NewLineOfCode(4, false, false, true, "{"),
			NewLineOfCode(5, true, true, true, "$a = 1;"),
			NewLineOfCode(6, true, false, false, "$b = 2;"),
			NewLineOfCode(7, true, false, true, "return;"),
		},
	}

	assert.Equal(t, 4, b.StartLine())
	assert.Equal(t, 7, b.EndLine())
	assert.Equal(t, 3, b.ExecutableLinesCount())
	assert.Equal(t, 1, b.CoveredLinesCount())
	assert.Equal(t, 2, b.ChangedLinesCount())
	assert.Equal(t, 33, b.CoveragePercentage())
	assert.Equal(t, 67, b.ChangePercentage())
	assert.Equal(t, "if at line 4", b.Name())
	assert.False(t, b.HasParent())
}

func TestCodeBlock_EmptyLines(t *testing.T) {
	b := &CodeBlock{Kind: BlockClosure, Parent: NoParent}

	assert.Zero(t, b.StartLine())
	assert.Zero(t, b.EndLine())
	assert.Zero(t, b.ChangePercentage())
}

func TestCodeBlock_Name(t *testing.T) {
	assert.Equal(t, `App\Service::run`, block(1, 0).Name())
	assert.Equal(t, `App\helper`, (&CodeBlock{Kind: BlockFunction, FunctionName: `App\helper`}).Name())
}

func TestNewLineOfCode_CoveredRequiresExecutable(t *testing.T) {
	assert.PanicsWithValue(t, "line 3 cannot be covered without being executable", func() {
		NewLineOfCode(3, false, true, false, "")
	})
	assert.Panics(t, func() { NewLineOfCode(0, true, false, false, "") })
	assert.NotPanics(t, func() { NewLineOfCode(3, false, false, true, "// comment") })
}

func TestBlockTree_Ancestors(t *testing.T) {
	tree := &BlockTree{}
	method := &CodeBlock{Kind: BlockClassMethod, Parent: NoParent}
	methodIndex := tree.Add(method)
	loop := &CodeBlock{Kind: BlockForeach, Parent: methodIndex}
	loopIndex := tree.Add(loop)
	closure := &CodeBlock{Kind: BlockClosure, Parent: loopIndex}
	tree.Add(closure)

	assert.Equal(t, []*CodeBlock{loop, method}, tree.Ancestors(closure))
	assert.Same(t, method, tree.Parent(loop))
	assert.Nil(t, tree.Parent(method))
	assert.Nil(t, tree.Parent(nil))
	assert.Empty(t, tree.Ancestors(method))
	assert.True(t, closure.HasParent())
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(5, 0))
	assert.Equal(t, 60, Percentage(3, 5))
	assert.Equal(t, 50, Percentage(1, 2))
	assert.Equal(t, 1, Percentage(1, 199))
}

func TestErrorKind(t *testing.T) {
	err := Errorf(ErrIntegrity, "line %d of %s", 40, "a.php")

	assert.Equal(t, "line 40 of a.php", err.Error())
	assert.True(t, errors.Is(err, ErrIntegrity))
	assert.Equal(t, ErrIntegrity, ErrorKind(fmt.Errorf("check: %w", err)))
	assert.Nil(t, ErrorKind(errors.New("plain")))
}

func TestFileCoverage(t *testing.T) {
	expected := 20
	fc := NewFileCoverage("/src/a.php", map[int]int{9: 0, 3: 2, 14: 1}, &expected)

	assert.Equal(t, []ExecutableLine{{3, 2}, {9, 0}, {14, 1}}, fc.ExecutableLines)
	assert.Equal(t, 2, fc.CoveredLinesCount())
	assert.Equal(t, 14, fc.MaxLineNumber())
	assert.Equal(t, map[int]int{3: 2, 9: 0, 14: 1}, fc.LineHits())

	files := []FileCoverage{{FilePath: "/src/b.php"}, fc}
	SortFileCoverages(files)
	assert.Equal(t, "/src/a.php", files[0].FilePath)
}

func TestSourceFile_Line(t *testing.T) {
	source := SourceFile{Path: "a.php", Lines: []string{"<?php", "echo 1;"}}

	line, ok := source.Line(2)
	require.True(t, ok)
	assert.Equal(t, "echo 1;", line)

	_, ok = source.Line(3)
	assert.False(t, ok)
	assert.Equal(t, 2, source.LinesCount())
}

func TestNewReportDocument(t *testing.T) {
	b := block(4, 1)
	b.FilePath = "/src/a.php"
	b.Lines[0].Changed = true

	report := CoverageReport{
		ReportedErrors: []ReportedError{{Block: b, Error: CoverageError{Message: "low"}}},
		AnalysedFiles:  []string{"/src/b.php", "/src/a.php"},
		ElapsedTime:    1500 * time.Millisecond,
	}

	doc := NewReportDocument(report)
	assert.Equal(t, []string{"/src/a.php", "/src/b.php"}, doc.AnalysedFiles)
	assert.Equal(t, []string{"/src/b.php", "/src/a.php"}, report.AnalysedFiles)
	assert.InDelta(t, 1.5, doc.ElapsedSeconds, 1e-9)
	require.Len(t, doc.Violations, 1)
	assert.Equal(t, 25, doc.Violations[0].CoveragePercentage)
	assert.Nil(t, doc.Violations[0].ChangePercentage)

	report.PatchMode = true
	doc = NewReportDocument(report)
	require.NotNil(t, doc.Violations[0].ChangePercentage)
	assert.Equal(t, 25, *doc.Violations[0].ChangePercentage)
}
