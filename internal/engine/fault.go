package engine

import (
	"fmt"
	"runtime/debug"

	"github.com/khanhnv2901/nginx-audit/internal/tree"
)

// Phase names the dispatch step a rule was executing.
type Phase string

const (
	PhaseAudit     Phase = "audit"
	PhasePostAudit Phase = "post_audit"
)

// Fault records a rule that failed while auditing. Faults are not findings:
// they mean a rule could not give an answer for a node, and the rest of the
// run is unaffected.
type Fault struct {
	Rule  string
	Phase Phase
	Node  *tree.Node
	Err   error
	// Panicked is set when the rule panicked rather than returning an error.
	Panicked bool
	Stack    string
}

func (f *Fault) Error() string {
	where := "<root>"
	if f.Node != nil && !f.Node.IsRoot() {
		where = fmt.Sprintf("%q at %s", f.Node.Name(), f.Node.Location())
	}
	kind := "failed"
	if f.Panicked {
		kind = "panicked"
	}
	return fmt.Sprintf("rule %s %s during %s of %s: %v", f.Rule, kind, f.Phase, where, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// invoke runs fn, turning a returned error or a panic into a Fault.
func invoke(rule string, phase Phase, node *tree.Node, fn func() error) (fault *Fault) {
	defer func() {
		if v := recover(); v != nil {
			err, ok := v.(error)
			if !ok {
				err = fmt.Errorf("%v", v)
			}
			fault = &Fault{Rule: rule, Phase: phase, Node: node, Err: err, Panicked: true, Stack: string(debug.Stack())}
		}
	}()

	if err := fn(); err != nil {
		return &Fault{Rule: rule, Phase: phase, Node: node, Err: err}
	}
	return nil
}
