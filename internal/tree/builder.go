package tree

import (
	"fmt"

	sharedErrors "github.com/khanhnv2901/nginx-audit/internal/shared/errors"
)

// Directive creates a plain (non-block) directive.
func Directive(name string, args ...string) *Node {
	return newNode(Location{}, name, args, false)
}

// Block creates a context node owning children. Passing a node that already
// belongs to another tree panics.
func Block(name string, args []string, children ...*Node) *Node {
	n := newNode(Location{}, name, args, true)
	adopt(n, children)
	return n
}

// Root creates the unnamed root context of a tree.
func Root(children ...*Node) *Node {
	return Block("", nil, children...)
}

// At returns n with its location set. It is meant to be chained with the
// constructors above while a tree is still being assembled.
func At(loc Location, n *Node) *Node {
	if n.parent != nil {
		panic(fmt.Sprintf("tree: cannot relocate attached node %q", n.name))
	}
	n.loc = loc
	return n
}

func adopt(parent *Node, children []*Node) {
	for _, c := range children {
		if c == nil {
			continue
		}
		if c.parent != nil {
			panic(fmt.Sprintf("tree: node %q already has a parent", c.name))
		}
		if c == parent {
			panic(fmt.Sprintf("tree: node %q cannot contain itself", c.name))
		}
		c.parent = parent
		parent.children = append(parent.children, c)
	}
}

// Builder assembles a tree incrementally, in document order. It is used by
// the parser, which only learns a block's children after reading them.
type Builder struct {
	root  *Node
	stack []*Node
	built bool
}

// NewBuilder returns a builder positioned at the root scope. file is recorded
// as the root location.
func NewBuilder(file string) *Builder {
	root := newNode(Location{File: file}, "", nil, true)
	return &Builder{
		root:  root,
		stack: []*Node{root},
	}
}

func (b *Builder) current() *Node {
	return b.stack[len(b.stack)-1]
}

// Directive appends a plain directive to the current scope.
func (b *Builder) Directive(loc Location, name string, args []string) *Node {
	n := newNode(loc, name, args, false)
	adopt(b.current(), []*Node{n})
	return n
}

// Open appends a context node to the current scope and descends into it.
func (b *Builder) Open(loc Location, name string, args []string) *Node {
	n := newNode(loc, name, args, true)
	adopt(b.current(), []*Node{n})
	b.stack = append(b.stack, n)
	return n
}

// Close ends the innermost open context.
func (b *Builder) Close() error {
	if len(b.stack) <= 1 {
		return fmt.Errorf("%w: close without matching open", sharedErrors.ErrUnbalanced)
	}
	b.stack = b.stack[:len(b.stack)-1]
	return nil
}

// Depth returns the number of currently open contexts.
func (b *Builder) Depth() int {
	return len(b.stack) - 1
}

// Build finishes construction and returns the validated root. The builder
// cannot be used afterwards.
func (b *Builder) Build() (*Node, error) {
	if b.built {
		return nil, fmt.Errorf("%w: builder already used", sharedErrors.ErrMalformedTree)
	}
	if open := len(b.stack) - 1; open > 0 {
		return nil, fmt.Errorf("%w: %d unclosed block(s), innermost %q", sharedErrors.ErrUnbalanced, open, b.current().name)
	}
	b.built = true
	if err := Validate(b.root); err != nil {
		return nil, err
	}
	return b.root, nil
}
