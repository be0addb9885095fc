package tree

import (
	"fmt"

	sharedErrors "github.com/khanhnv2901/nginx-audit/internal/shared/errors"
)

// ContractError describes a structural defect in a tree handed to the engine.
type ContractError struct {
	Node   *Node
	Reason string
}

func (e *ContractError) Error() string {
	if e.Node == nil {
		return fmt.Sprintf("%s: %s", sharedErrors.ErrMalformedTree, e.Reason)
	}
	return fmt.Sprintf("%s: %s (at %q, %s)", sharedErrors.ErrMalformedTree, e.Reason, e.Node.name, e.Node.loc)
}

func (e *ContractError) Unwrap() error {
	return sharedErrors.ErrMalformedTree
}

// Validate checks the structural invariants every query relies on: the root
// has no parent, each child points back at the node listing it, a node is
// listed once, only contexts have children and the structure is acyclic.
func Validate(root *Node) error {
	if root == nil {
		return sharedErrors.ErrNilTree
	}
	if root.parent != nil {
		return &ContractError{Node: root, Reason: "root has a parent"}
	}

	seen := make(map[*Node]struct{})
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, dup := seen[n]; dup {
			return &ContractError{Node: n, Reason: "node reachable more than once"}
		}
		seen[n] = struct{}{}

		if !n.context && len(n.children) > 0 {
			return &ContractError{Node: n, Reason: "plain directive has children"}
		}

		for _, c := range n.children {
			if c == nil {
				return &ContractError{Node: n, Reason: "nil child"}
			}
			if c.parent != n {
				return &ContractError{Node: c, Reason: "child does not point back to its parent"}
			}
			stack = append(stack, c)
		}
	}
	return nil
}
