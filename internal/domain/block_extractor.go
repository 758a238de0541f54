package domain

import (
	"log/slog"
	"regexp"
	"sync"

	"github.com/mouse-blink/coverguard/internal/domain/rules"
	m "github.com/mouse-blink/coverguard/internal/model"
	"github.com/mouse-blink/coverguard/internal/phpsource"
)

// BlockExtractor maps a parsed PHP file onto code blocks and runs the rules
// over them.
type BlockExtractor interface {
	// Traverse builds the blocks of one file. lineCoverage maps executable
	// lines to their hits; changed is nil outside patch mode.
	Traverse(
		file *phpsource.File,
		source m.SourceFile,
		lineCoverage map[int]int,
		changed map[int]struct{},
		ruleSet []rules.Rule,
		patchMode bool,
	) ([]m.ReportedError, error)
}

type blockExtractor struct {
	excluders []LineExcluder
}

// NewBlockExtractor creates a BlockExtractor applying the excluders in order.
func NewBlockExtractor(excluders ...LineExcluder) BlockExtractor {
	return &blockExtractor{excluders: excluders}
}

var blockKinds = map[phpsource.NodeKind]m.BlockKind{
	phpsource.NodeMethod:        m.BlockClassMethod,
	phpsource.NodeFunction:      m.BlockFunction,
	phpsource.NodeClosure:       m.BlockClosure,
	phpsource.NodeArrowFunction: m.BlockArrowFunction,
	phpsource.NodeForeach:       m.BlockForeach,
	phpsource.NodeFor:           m.BlockFor,
	phpsource.NodeWhile:         m.BlockWhile,
	phpsource.NodeDoWhile:       m.BlockDoWhile,
	phpsource.NodeIf:            m.BlockIf,
	phpsource.NodeElseIf:        m.BlockElseIf,
	phpsource.NodeElse:          m.BlockElse,
	phpsource.NodeSwitch:        m.BlockSwitch,
	phpsource.NodeCase:          m.BlockCase,
	phpsource.NodeTry:           m.BlockTry,
	phpsource.NodeCatch:         m.BlockCatch,
	phpsource.NodeFinally:       m.BlockFinally,
	phpsource.NodeMatch:         m.BlockMatch,
}

// Traverse implements BlockExtractor.
func (e *blockExtractor) Traverse(
	file *phpsource.File,
	source m.SourceFile,
	lineCoverage map[int]int,
	changed map[int]struct{},
	ruleSet []rules.Rule,
	patchMode bool,
) ([]m.ReportedError, error) {
	if file == nil || file.Root == nil {
		return nil, m.Errorf(m.ErrFormat, "%s: no syntax tree", source.Path)
	}

	t := &traversal{
		filePath:  string(source.Path),
		source:    source,
		hits:      lineCoverage,
		changed:   changed,
		excluded:  excludedLines(file, e.excluders),
		patchMode: patchMode,
		tree:      &m.BlockTree{},
	}

	t.walk(file.Root, m.NoParent, nil, nil)

	if t.err != nil {
		slog.Error("Failed to extract blocks", "file", source.Path, "error", t.err)
		return nil, t.err
	}

	slog.Debug("Extracted blocks", "file", source.Path,
		"blocks", len(t.tree.Blocks), "presented", len(t.presented))

	var reported []m.ReportedError

	for _, p := range t.presented {
		block := t.tree.Blocks[p.index]

		for _, rule := range ruleSet {
			if violation := rule.Inspect(block, p.ctx); violation != nil {
				reported = append(reported, m.ReportedError{Block: block, Error: *violation})
			}
		}
	}

	return reported, nil
}

type classScope struct {
	name string
	kind phpsource.ClassKind
	doc  string
}

// declScope is the method or function a block belongs to.
type declScope struct {
	className   string
	methodName  string
	declaration func() m.DeclarationInfo
}

type presentedBlock struct {
	index int
	ctx   m.InspectionContext
}

type traversal struct {
	filePath  string
	source    m.SourceFile
	hits      map[int]int
	changed   map[int]struct{}
	excluded  LineSet
	patchMode bool

	tree      *m.BlockTree
	presented []presentedBlock
	err       error
}

//nolint:cyclop // one case per declaration kind
func (t *traversal) walk(node *phpsource.Node, parent int, class *classScope, decl *declScope) {
	if t.err != nil {
		return
	}

	switch node.Kind {
	case phpsource.NodeClass:
		if node.ClassKind == phpsource.ClassKindAnonymous {
			return
		}

		class = &classScope{name: node.FQName, kind: node.ClassKind, doc: node.DocComment}
	case phpsource.NodeMethod:
		if !node.HasBody || class == nil {
			return
		}

		decl = &declScope{
			className:   class.name,
			methodName:  node.Name,
			declaration: lazyDeclaration(node.DocComment, class),
		}

		parent = t.addBlock(node, node.NameLine, parent, decl, func(block *m.CodeBlock) {
			block.ClassName = class.name
			block.MethodName = node.Name
		})
	case phpsource.NodeFunction:
		decl = &declScope{declaration: lazyDeclaration(node.DocComment, nil)}

		parent = t.addBlock(node, node.StartLine, parent, decl, func(block *m.CodeBlock) {
			block.FunctionName = node.FQName
		})
	default:
		if _, ok := blockKinds[node.Kind]; ok {
			parent = t.addBlock(node, node.StartLine, parent, decl, nil)
		}
	}

	for _, child := range node.Children {
		t.walk(child, parent, class, decl)
	}
}

// addBlock creates the block for node and returns the parent index its
// children should use: the new block, or parent when no block was created.
func (t *traversal) addBlock(
	node *phpsource.Node,
	startLine int,
	parent int,
	decl *declScope,
	fill func(*m.CodeBlock),
) int {
	lines := make([]m.LineOfCode, 0, max(node.EndLine-startLine+1, 0))
	executable := 0

	for number := startLine; number <= node.EndLine; number++ {
		contents, ok := t.source.Line(number)
		if !ok {
			t.err = m.Errorf(m.ErrIntegrity, "%s: %s ends at line %d, but the file has %d lines",
				t.filePath, node.Kind, node.EndLine, t.source.LinesCount())

			return parent
		}

		hits, listed := t.hits[number]
		isExecutable := listed && !t.excluded.Contains(number)
		_, isChanged := t.changed[number]

		if isExecutable {
			executable++
		}

		lines = append(lines, m.NewLineOfCode(number, isExecutable, isExecutable && hits > 0, isChanged, contents))
	}

	if executable == 0 {
		return parent
	}

	block := &m.CodeBlock{
		Kind:     blockKinds[node.Kind],
		FilePath: t.filePath,
		Lines:    lines,
		Parent:   parent,
	}

	if fill != nil {
		fill(block)
	}

	index := t.tree.Add(block)

	if t.patchMode && block.ChangedLinesCount() == 0 {
		return index
	}

	ctx := m.NewInspectionContext("", "", t.filePath, t.patchMode, t.tree, nil)
	if decl != nil {
		ctx = m.NewInspectionContext(decl.className, decl.methodName, t.filePath, t.patchMode, t.tree, decl.declaration)
	}

	t.presented = append(t.presented, presentedBlock{index: index, ctx: ctx})

	return index
}

var annotationPattern = regexp.MustCompile(`(?m)^\s*(?:/\*\*|\*)?\s*@([A-Za-z_][A-Za-z0-9_\-\\]*)`)

// parseAnnotations returns the tags starting a doc-comment line.
func parseAnnotations(docs ...string) map[string]struct{} {
	tags := map[string]struct{}{}

	for _, doc := range docs {
		for _, match := range annotationPattern.FindAllStringSubmatch(doc, -1) {
			tags[match[1]] = struct{}{}
		}
	}

	return tags
}

type declaration struct {
	annotations map[string]struct{}
	declaring   m.TypeRef
}

func (d *declaration) Annotations() map[string]struct{} {
	return d.annotations
}

func (d *declaration) DeclaringType() m.TypeRef {
	return d.declaring
}

func lazyDeclaration(doc string, class *classScope) func() m.DeclarationInfo {
	var (
		once sync.Once
		info *declaration
	)

	return func() m.DeclarationInfo {
		once.Do(func() {
			info = &declaration{}
			if class == nil {
				info.annotations = parseAnnotations(doc)
				return
			}

			info.annotations = parseAnnotations(doc, class.doc)
			info.declaring = m.TypeRef{Name: class.name, Kind: string(class.kind)}
		})

		return info
	}
}
