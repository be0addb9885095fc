package issue

import "github.com/khanhnv2901/nginx-audit/internal/tree"

// Issue is a single finding emitted by a rule. It is immutable once created.
type Issue struct {
	rule        string
	summary     string
	description string
	helpURL     string
	severity    Severity
	reason      string
	nodes       []*tree.Node
}

// Source identifies the rule that emitted an issue along with the text the
// report shows next to it.
type Source struct {
	Rule        string
	Summary     string
	Description string
	HelpURL     string
}

// New creates an issue. Nil nodes are dropped.
func New(src Source, severity Severity, reason string, nodes ...*tree.Node) Issue {
	kept := make([]*tree.Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			kept = append(kept, n)
		}
	}
	return Issue{
		rule:        src.Rule,
		summary:     src.Summary,
		description: src.Description,
		helpURL:     src.HelpURL,
		severity:    severity,
		reason:      reason,
		nodes:       kept,
	}
}

func (i Issue) Rule() string {
	return i.rule
}

func (i Issue) Summary() string {
	return i.summary
}

func (i Issue) Description() string {
	return i.description
}

func (i Issue) HelpURL() string {
	return i.helpURL
}

func (i Issue) Severity() Severity {
	return i.severity
}

func (i Issue) Reason() string {
	return i.reason
}

// Nodes returns the directives the issue points at, offending node first.
func (i Issue) Nodes() []*tree.Node {
	return append([]*tree.Node{}, i.nodes...)
}

// Locations returns the source location of every associated node.
func (i Issue) Locations() []tree.Location {
	locs := make([]tree.Location, 0, len(i.nodes))
	for _, n := range i.nodes {
		locs = append(locs, n.Location())
	}
	return locs
}

// Message returns the reason, falling back to the rule summary.
func (i Issue) Message() string {
	if i.reason != "" {
		return i.reason
	}
	return i.summary
}
