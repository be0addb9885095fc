package rules

import (
	"strings"

	"github.com/khanhnv2901/nginx-audit/internal/engine"
	"github.com/khanhnv2901/nginx-audit/internal/issue"
	"github.com/khanhnv2901/nginx-audit/internal/tree"
)

const serverTokens = "server_tokens"

// VersionDisclosure flags server_tokens values that expose the nginx version,
// and, over the whole configuration, servers that never turn it off.
type VersionDisclosure struct{}

func (VersionDisclosure) Descriptor() engine.Descriptor {
	return engine.Descriptor{
		Name:    "version_disclosure",
		Summary: "NGINX version disclosure via server_tokens.",
		Description: "Using server_tokens on; or server_tokens build; allows an attacker to learn " +
			"the NGINX version, which can be used to target known vulnerabilities.",
		HelpURL:    helpURL("version_disclosure"),
		Severity:   issue.High,
		Directives: []string{serverTokens},
	}
}

func (VersionDisclosure) Audit(n *tree.Node, r engine.Reporter) error {
	if unsafeTokens(n) {
		r.AddIssue(issue.High, "`server_tokens` is set to a value that enables version disclosure.", n, n.Parent())
	}
	return nil
}

// PostAudit reports servers under the top-level http block that rely on the
// server_tokens default. Explicit unsafe values are left to Audit.
func (VersionDisclosure) PostAudit(root *tree.Node, r engine.Reporter) error {
	http := root.Lookup("http")
	if http == nil {
		return nil
	}
	httpTokens := http.Lookup(serverTokens)
	if httpTokens != nil && strings.EqualFold(httpTokens.Arg(0), "off") {
		return nil
	}

	for server := range http.FindContexts("server") {
		tokens := server.Lookup(serverTokens)
		if tokens == nil {
			r.AddIssue(issue.High, "Missing `server_tokens`; default is `on`, which enables version disclosure.", server)
			continue
		}
		if unsafeTokens(tokens) {
			continue
		}

		for location := range server.FindContexts("location") {
			if location.Lookup(serverTokens) != nil {
				continue
			}
			// Locations inherit from the server or http level; values set
			// by an enclosing location are reported by Audit.
			inherited := tokens
			if inherited == nil {
				inherited = httpTokens
			}
			if inherited == nil || unsafeTokens(inherited) {
				r.AddIssue(issue.Medium, "Missing `server_tokens` in this location; it inherits an unsafe value.", location)
			}
		}
	}
	return nil
}

func unsafeTokens(n *tree.Node) bool {
	switch strings.ToLower(n.Arg(0)) {
	case "on", "build":
		return true
	}
	return false
}
