package model

import "fmt"

// BlockKind tags the syntactic construct a CodeBlock was built from.
type BlockKind string

// Block kinds produced by the block extractor.
const (
	BlockClassMethod   BlockKind = "method"
	BlockFunction      BlockKind = "function"
	BlockClosure       BlockKind = "closure"
	BlockArrowFunction BlockKind = "arrow function"
	BlockForeach       BlockKind = "foreach"
	BlockFor           BlockKind = "for"
	BlockWhile         BlockKind = "while"
	BlockDoWhile       BlockKind = "do-while"
	BlockIf            BlockKind = "if"
	BlockElseIf        BlockKind = "elseif"
	BlockElse          BlockKind = "else"
	BlockSwitch        BlockKind = "switch"
	BlockCase          BlockKind = "case"
	BlockTry           BlockKind = "try"
	BlockCatch         BlockKind = "catch"
	BlockFinally       BlockKind = "finally"
	BlockMatch         BlockKind = "match"
)

// NoParent marks a block without an enclosing block.
const NoParent = -1

// LineOfCode is a single source line inside a block.
type LineOfCode struct {
	Number     int
	Executable bool
	Covered    bool
	Changed    bool
	Contents   string
}

// NewLineOfCode builds a LineOfCode. A covered line must be executable;
// anything else is a programming error.
func NewLineOfCode(number int, executable, covered, changed bool, contents string) LineOfCode {
	if covered && !executable {
		panic(fmt.Sprintf("line %d cannot be covered without being executable", number))
	}

	if number < 1 {
		panic(fmt.Sprintf("line number must be positive, got %d", number))
	}

	return LineOfCode{
		Number:     number,
		Executable: executable,
		Covered:    covered,
		Changed:    changed,
		Contents:   contents,
	}
}

// CodeBlock is a syntactically scoped unit used for rule evaluation.
type CodeBlock struct {
	Kind     BlockKind
	FilePath string
	Lines    []LineOfCode

	// Parent is the index of the enclosing block in the owning BlockTree.
	Parent int

	ClassName    string // ClassMethod only
	MethodName   string // ClassMethod only
	FunctionName string // Function only
}

// StartLine returns the first line number of the block.
func (b *CodeBlock) StartLine() int {
	if len(b.Lines) == 0 {
		return 0
	}

	return b.Lines[0].Number
}

// EndLine returns the last line number of the block.
func (b *CodeBlock) EndLine() int {
	if len(b.Lines) == 0 {
		return 0
	}

	return b.Lines[len(b.Lines)-1].Number
}

// ExecutableLinesCount returns the number of executable lines.
func (b *CodeBlock) ExecutableLinesCount() int {
	count := 0

	for _, line := range b.Lines {
		if line.Executable {
			count++
		}
	}

	return count
}

// CoveredLinesCount returns the number of covered lines.
func (b *CodeBlock) CoveredLinesCount() int {
	count := 0

	for _, line := range b.Lines {
		if line.Covered {
			count++
		}
	}

	return count
}

// ChangedLinesCount returns the number of changed executable lines.
func (b *CodeBlock) ChangedLinesCount() int {
	count := 0

	for _, line := range b.Lines {
		if line.Executable && line.Changed {
			count++
		}
	}

	return count
}

// CoveragePercentage returns covered/executable as a rounded percentage.
func (b *CodeBlock) CoveragePercentage() int {
	return Percentage(b.CoveredLinesCount(), b.ExecutableLinesCount())
}

// ChangePercentage returns changed/executable as a rounded percentage.
func (b *CodeBlock) ChangePercentage() int {
	return Percentage(b.ChangedLinesCount(), b.ExecutableLinesCount())
}

// HasParent reports whether the block is nested in another block.
func (b *CodeBlock) HasParent() bool {
	return b.Parent != NoParent
}

// Name returns a human readable identifier of the block.
func (b *CodeBlock) Name() string {
	switch b.Kind {
	case BlockClassMethod:
		return b.ClassName + "::" + b.MethodName
	case BlockFunction:
		return b.FunctionName
	default:
		return fmt.Sprintf("%s at line %d", b.Kind, b.StartLine())
	}
}

// Percentage returns part/total*100 rounded half up; 0 when total is 0.
func Percentage(part, total int) int {
	if total <= 0 {
		return 0
	}

	return (part*200 + total) / (total * 2)
}

// BlockTree owns every block of one file; parents are referenced by index.
type BlockTree struct {
	Blocks []*CodeBlock
}

// Add appends a block and returns its index.
func (t *BlockTree) Add(block *CodeBlock) int {
	t.Blocks = append(t.Blocks, block)

	return len(t.Blocks) - 1
}

// Parent returns the enclosing block of b, nil for top-level blocks.
func (t *BlockTree) Parent(b *CodeBlock) *CodeBlock {
	if b == nil || b.Parent < 0 || b.Parent >= len(t.Blocks) {
		return nil
	}

	return t.Blocks[b.Parent]
}

// Ancestors returns the chain of enclosing blocks, nearest first.
func (t *BlockTree) Ancestors(b *CodeBlock) []*CodeBlock {
	var chain []*CodeBlock

	for parent := t.Parent(b); parent != nil; parent = t.Parent(parent) {
		chain = append(chain, parent)
	}

	return chain
}
