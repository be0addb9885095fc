package engine

import (
	"github.com/khanhnv2901/nginx-audit/internal/issue"
	"github.com/khanhnv2901/nginx-audit/internal/tree"
)

// Descriptor is what a rule declares about itself at registration time.
type Descriptor struct {
	// Name uniquely identifies the rule (e.g. "allow_without_deny").
	Name string
	// Summary is a one-line statement of the problem.
	Summary string
	// Description explains the risk in more detail.
	Description string
	// HelpURL points at the rule documentation.
	HelpURL string
	// Severity is used for issues reported without an explicit level.
	Severity issue.Severity
	// Directives is the interest set: Audit is only called for nodes with
	// one of these names.
	Directives []string
}

func (d Descriptor) source() issue.Source {
	return issue.Source{
		Rule:        d.Name,
		Summary:     d.Summary,
		Description: d.Description,
		HelpURL:     d.HelpURL,
	}
}

// Reporter records findings on behalf of the rule it was handed to.
type Reporter interface {
	// AddIssue records a finding. issue.Unspecified selects the rule's
	// default severity; an empty reason selects its summary in reports.
	AddIssue(severity issue.Severity, reason string, nodes ...*tree.Node)
}

// Rule is an independent check over configuration directives.
//
// Audit may be called concurrently for different nodes, so implementations
// must not keep per-node state on the receiver.
type Rule interface {
	Descriptor() Descriptor
	Audit(node *tree.Node, r Reporter) error
}

// FullConfigRule is a rule that also needs one pass over the whole tree after
// every per-node audit of the run has finished.
type FullConfigRule interface {
	Rule
	PostAudit(root *tree.Node, r Reporter) error
}

// reporter buffers the issues of one rule invocation.
type reporter struct {
	desc   Descriptor
	issues []issue.Issue
}

func (r *reporter) AddIssue(severity issue.Severity, reason string, nodes ...*tree.Node) {
	if severity == issue.Unspecified {
		severity = r.desc.Severity
	}
	r.issues = append(r.issues, issue.New(r.desc.source(), severity, reason, nodes...))
}
