// Package chain rebuilds the inline and call tree of one compilation from its
// task journal.
package chain

import (
	"jitscope/internal/compile"
	"jitscope/internal/journal"
	"jitscope/internal/program"
	"jitscope/internal/resolve"
)

// Node is one call or inline site within a compilation.
type Node struct {
	MethodID  string
	Inlined   bool
	Virtual   bool
	Reason    string
	CallerBCI int
	Tooltip   string
	Children  []*Node

	// parent is for upward navigation only; children own the tree.
	parent *Node
	root   *rootInfo
}

// rootInfo is carried by the root node only.
type rootInfo struct {
	compilation *compile.Compilation
	dict        *journal.Dictionary
	model       program.Model
	resolver    *resolve.Resolver
}

func (n *Node) add(child *Node) *Node {
	child.parent = n
	n.Children = append(n.Children, child)
	return child
}

// Parent returns the caller node, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// IsRoot reports whether n is the root of its tree.
func (n *Node) IsRoot() bool {
	return n.parent == nil
}

// Root returns the root of the tree n belongs to.
func (n *Node) Root() *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// Compilation returns the compilation the tree was built for.
func (n *Node) Compilation() *compile.Compilation {
	if ri := n.Root().root; ri != nil {
		return ri.compilation
	}
	return nil
}

// Dictionary returns the parse dictionary every id in the tree belongs to.
func (n *Node) Dictionary() *journal.Dictionary {
	if ri := n.Root().root; ri != nil {
		return ri.dict
	}
	return nil
}

// Model returns the program model the tree resolves against.
func (n *Node) Model() program.Model {
	if ri := n.Root().root; ri != nil {
		return ri.model
	}
	return nil
}

// Member resolves MethodID through the root's dictionary and model. The
// result is not stored; a richer model yields a richer answer.
func (n *Node) Member() *program.Member {
	ri := n.Root().root
	if ri == nil || ri.resolver == nil {
		return nil
	}
	return ri.resolver.Resolve(n.MethodID, ri.dict)
}

// Signature returns the declared signature of MethodID, independent of the
// program model.
func (n *Node) Signature() (resolve.Signature, bool) {
	sig, err := resolve.SignatureOf(n.MethodID, n.Dictionary())
	return sig, err == nil
}

// Label names the node for display: the resolved member when there is one,
// else the declared signature, else the raw id.
func (n *Node) Label() string {
	if m := n.Member(); m != nil {
		return m.String()
	}
	if sig, ok := n.Signature(); ok {
		return sig.String()
	}
	return "method#" + n.MethodID
}

// Depth returns the number of ancestors.
func (n *Node) Depth() int {
	d := 0
	for p := n.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Walk visits n and its descendants depth first, in document order.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Count returns the number of nodes in the subtree rooted at n.
func (n *Node) Count() int {
	total := 0
	n.Walk(func(*Node) bool {
		total++
		return true
	})
	return total
}
