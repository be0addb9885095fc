package rules

import (
	"github.com/khanhnv2901/nginx-audit/internal/engine"
	"github.com/khanhnv2901/nginx-audit/internal/issue"
	"github.com/khanhnv2901/nginx-audit/internal/tree"
)

// ValidReferers flags valid_referers lists that trust requests without a
// Referer header, e.g.:
//
//	valid_referers none server_names *.example.com;
type ValidReferers struct{}

func (ValidReferers) Descriptor() engine.Descriptor {
	return engine.Descriptor{
		Name:    "valid_referers",
		Summary: `Used "none" as valid referer.`,
		Description: `Using "none" in valid_referers treats requests with no Referer as trusted, ` +
			`effectively disabling referer-based access control and clickjacking protection.`,
		HelpURL:    helpURL("valid_referers"),
		Severity:   issue.High,
		Directives: []string{"valid_referers"},
	}
}

func (ValidReferers) Audit(n *tree.Node, r engine.Reporter) error {
	if n.HasArg("none") {
		r.AddIssue(issue.Unspecified, "", n)
	}
	return nil
}
