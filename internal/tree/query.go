package tree

import "iter"

// Lookup returns the first direct child named name, in document order, or nil.
// Ancestors are not consulted.
func (n *Node) Lookup(name string) *Node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// LookupAll returns every direct child named name, in document order.
func (n *Node) LookupAll(name string) []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// LookupAncestor returns the setting n inherits: the Lookup result of the
// nearest enclosing scope that sets name directly. n itself is skipped.
func (n *Node) LookupAncestor(name string) *Node {
	for p := n.parent; p != nil; p = p.parent {
		if found := p.Lookup(name); found != nil {
			return found
		}
	}
	return nil
}

// LookupInScope is LookupAncestor starting at n itself, so a local setting
// wins over any inherited one.
func (n *Node) LookupInScope(name string) *Node {
	if found := n.Lookup(name); found != nil {
		return found
	}
	return n.LookupAncestor(name)
}

// FindContexts yields every context below n named typ, depth-first in
// document order. Nested contexts of any type are searched. n itself is
// never yielded. Each call starts a fresh traversal.
func (n *Node) FindContexts(typ string) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		findContexts(n, typ, yield)
	}
}

func findContexts(n *Node, typ string, yield func(*Node) bool) bool {
	for _, c := range n.children {
		if !c.context {
			continue
		}
		if c.name == typ && !yield(c) {
			return false
		}
		if !findContexts(c, typ, yield) {
			return false
		}
	}
	return true
}

// Walk yields n and all of its descendants in pre-order (document order).
func (n *Node) Walk() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		walk(n, yield)
	}
}

func walk(n *Node, yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, c := range n.children {
		if !walk(c, yield) {
			return false
		}
	}
	return true
}

// Ancestors yields the enclosing nodes of n from the nearest outwards,
// ending with the root.
func (n *Node) Ancestors() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for p := n.parent; p != nil; p = p.parent {
			if !yield(p) {
				return
			}
		}
	}
}
