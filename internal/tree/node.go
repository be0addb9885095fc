package tree

import (
	"fmt"
	"strings"
)

// Location is the source position the parser attached to a node. The tree
// treats it as opaque metadata and only passes it through to findings.
type Location struct {
	File string `json:"file,omitempty" yaml:"file,omitempty"`
	Line int    `json:"line,omitempty" yaml:"line,omitempty"`
}

// String returns "file:line", or "<unknown>" when the parser recorded nothing.
func (l Location) String() string {
	switch {
	case l.File == "" && l.Line <= 0:
		return "<unknown>"
	case l.Line <= 0:
		return l.File
	case l.File == "":
		return fmt.Sprintf("<input>:%d", l.Line)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// IsValid reports whether the location carries a line number.
func (l Location) IsValid() bool {
	return l.Line > 0
}

// Node is a single directive of a configuration tree. Context nodes (http,
// server, location, if, ...) own an ordered list of children; plain directives
// have none. A Node is immutable once its tree has been built.
type Node struct {
	name     string
	args     []string
	parent   *Node
	children []*Node
	context  bool
	loc      Location
}

func newNode(loc Location, name string, args []string, context bool) *Node {
	return &Node{
		name:    name,
		args:    append([]string{}, args...),
		context: context,
		loc:     loc,
	}
}

// Name returns the directive keyword. The root node has an empty name.
func (n *Node) Name() string {
	return n.name
}

// Args returns a copy of the argument tokens. It is never nil.
func (n *Node) Args() []string {
	return append([]string{}, n.args...)
}

// NArgs returns the number of arguments.
func (n *Node) NArgs() int {
	return len(n.args)
}

// Arg returns the i-th argument, or "" when the directive has fewer arguments.
func (n *Node) Arg(i int) string {
	if i < 0 || i >= len(n.args) {
		return ""
	}
	return n.args[i]
}

// HasArg reports whether any argument equals value.
func (n *Node) HasArg(value string) bool {
	for _, a := range n.args {
		if a == value {
			return true
		}
	}
	return false
}

// ArgsEqual reports whether the arguments are exactly values, in order.
func (n *Node) ArgsEqual(values ...string) bool {
	if len(n.args) != len(values) {
		return false
	}
	for i := range values {
		if n.args[i] != values[i] {
			return false
		}
	}
	return true
}

// Parent returns the enclosing node, or nil for the root.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns a copy of the ordered child list.
func (n *Node) Children() []*Node {
	return append([]*Node{}, n.children...)
}

// Len returns the number of direct children.
func (n *Node) Len() int {
	return len(n.children)
}

// IsContext reports whether the node introduces a nested scope.
func (n *Node) IsContext() bool {
	return n.context
}

// IsRoot reports whether the node is the tree root.
func (n *Node) IsRoot() bool {
	return n.parent == nil
}

// Location returns the parser-supplied source position.
func (n *Node) Location() Location {
	return n.loc
}

// Depth returns the number of ancestors above the node.
func (n *Node) Depth() int {
	depth := 0
	for p := n.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

// String renders the node the way it appears in a configuration file.
func (n *Node) String() string {
	if n.parent == nil && n.name == "" {
		return "<root>"
	}

	var b strings.Builder
	b.WriteString(n.name)
	for _, a := range n.args {
		b.WriteByte(' ')
		b.WriteString(quoteArg(a))
	}
	if n.context {
		b.WriteString(" {")
	} else {
		b.WriteByte(';')
	}
	return b.String()
}

func quoteArg(a string) string {
	if a == "" || strings.ContainsAny(a, " \t\n;{}\"'") {
		return fmt.Sprintf("%q", a)
	}
	return a
}
