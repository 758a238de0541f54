package phpsource

// NodeKind tags a syntax tree node.
type NodeKind int

// Node kinds.
const (
	NodeFile NodeKind = iota
	NodeClass
	NodeMethod
	NodeFunction
	NodeClosure
	NodeArrowFunction
	NodeForeach
	NodeFor
	NodeWhile
	NodeDoWhile
	NodeIf
	NodeElseIf
	NodeElse
	NodeSwitch
	NodeCase
	NodeTry
	NodeCatch
	NodeFinally
	NodeMatch
	NodeThrow
	NodeCall
)

var nodeKindNames = map[NodeKind]string{
	NodeFile:          "file",
	NodeClass:         "class",
	NodeMethod:        "method",
	NodeFunction:      "function",
	NodeClosure:       "closure",
	NodeArrowFunction: "arrow function",
	NodeForeach:       "foreach",
	NodeFor:           "for",
	NodeWhile:         "while",
	NodeDoWhile:       "do-while",
	NodeIf:            "if",
	NodeElseIf:        "elseif",
	NodeElse:          "else",
	NodeSwitch:        "switch",
	NodeCase:          "case",
	NodeTry:           "try",
	NodeCatch:         "catch",
	NodeFinally:       "finally",
	NodeMatch:         "match",
	NodeThrow:         "throw",
	NodeCall:          "call",
}

func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}

	return "unknown"
}

// ClassKind distinguishes class-like declarations.
type ClassKind string

// Class-like declaration kinds.
const (
	ClassKindClass     ClassKind = "class"
	ClassKindTrait     ClassKind = "trait"
	ClassKindInterface ClassKind = "interface"
	ClassKindEnum      ClassKind = "enum"
	ClassKindAnonymous ClassKind = "anonymous"
)

// Node is an element of the structural syntax tree. Which optional fields
// are set depends on Kind.
type Node struct {
	Kind      NodeKind
	StartLine int
	EndLine   int
	Children  []*Node

	// Name is the short declared name of classes, methods and functions,
	// or the callee text of calls.
	Name     string
	NameLine int

	// FQName is the namespace-qualified name of classes and functions.
	FQName string

	ClassKind  ClassKind
	DocComment string

	// HasBody is false for abstract and interface methods.
	HasBody bool

	// ThrownClass is the resolved class of `throw new X(...)`.
	ThrownClass string

	// ArgsStartLine and ArgsEndLine are the lines of a call's parentheses.
	ArgsStartLine int
	ArgsEndLine   int
}

func (n *Node) add(child *Node) {
	n.Children = append(n.Children, child)
}

// IsFunctionLike reports whether the node introduces its own body that runs
// independently from the surrounding statement.
func (n *Node) IsFunctionLike() bool {
	switch n.Kind {
	case NodeClosure, NodeArrowFunction, NodeFunction, NodeMethod:
		return true
	case NodeClass:
		return n.ClassKind == ClassKindAnonymous
	default:
		return false
	}
}

// File is a parsed PHP source file.
type File struct {
	Path string
	Root *Node
}
