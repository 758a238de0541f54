package phpsource

// A Visitor's Visit method is invoked for each node encountered by Walk.
// If the result visitor w is not nil, Walk visits each of the children of
// node with the visitor w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(node *Node) (w Visitor)
}

// Walk traverses the tree in depth-first order.
func Walk(v Visitor, node *Node) {
	if node == nil {
		return
	}

	if v = v.Visit(node); v == nil {
		return
	}

	for _, child := range node.Children {
		Walk(v, child)
	}

	v.Visit(nil)
}

type inspector func(*Node) bool

func (f inspector) Visit(node *Node) Visitor {
	if f(node) {
		return f
	}

	return nil
}

// Inspect traverses the tree calling f for each node; when f returns false
// the children of that node are skipped. Like Walk, f is called with nil
// after the children of a node have been visited.
func Inspect(node *Node, f func(*Node) bool) {
	Walk(inspector(f), node)
}
