package rules

import (
	"github.com/khanhnv2901/nginx-audit/internal/engine"
	"github.com/khanhnv2901/nginx-audit/internal/issue"
	"github.com/khanhnv2901/nginx-audit/internal/tree"
)

// AllowWithoutDeny flags allow directives in a scope that never denies
// anything, which usually leaves the resource open to everyone.
type AllowWithoutDeny struct{}

func (AllowWithoutDeny) Descriptor() engine.Descriptor {
	return engine.Descriptor{
		Name:        "allow_without_deny",
		Summary:     "Found allow directive(s) without deny in the same context.",
		Description: `The "allow" directives should be typically accompanied by "deny all;" directive.`,
		HelpURL:     helpURL("allow_without_deny"),
		Severity:    issue.High,
		Directives:  []string{"allow"},
	}
}

func (AllowWithoutDeny) Audit(n *tree.Node, r engine.Reporter) error {
	scope := n.Parent()
	if scope == nil {
		return nil
	}
	// "allow all" in a nested location re-opens a path its parent restricts.
	if n.ArgsEqual("all") {
		return nil
	}
	if scope.Lookup("deny") != nil {
		return nil
	}

	r.AddIssue(issue.Unspecified, `You probably want "deny all;" after all the "allow" directives`, n)
	return nil
}
