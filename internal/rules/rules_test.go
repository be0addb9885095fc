package rules

import (
	"slices"
	"testing"

	"github.com/khanhnv2901/nginx-audit/internal/engine"
	"github.com/khanhnv2901/nginx-audit/internal/issue"
	"github.com/khanhnv2901/nginx-audit/internal/tree"
)

func dispatch(t *testing.T, root *tree.Node, rules ...engine.Rule) []issue.Issue {
	t.Helper()

	reg, err := engine.NewRegistry(rules...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	res, err := engine.NewDispatcher(reg).Run(root)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Faults) != 0 {
		t.Fatalf("unexpected faults: %v", res.Faults)
	}
	return res.Issues
}

func TestAllRegister(t *testing.T) {
	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	var names []string
	for _, r := range reg.Rules() {
		names = append(names, r.Descriptor().Name)
	}
	want := []string{"allow_without_deny", "valid_referers", "version_disclosure"}
	if !slices.Equal(names, want) {
		t.Fatalf("rules = %v, want %v", names, want)
	}

	for _, r := range All() {
		d := r.Descriptor()
		if d.HelpURL != helpBaseURL+d.Name+"/" {
			t.Errorf("%s help url = %q", d.Name, d.HelpURL)
		}
		if len(d.Directives) == 0 {
			t.Errorf("%s declares no directives", d.Name)
		}
	}
	if got := len(reg.FullConfigRules()); got != 1 {
		t.Fatalf("full-config rules = %d, want 1", got)
	}
}

func TestAllowWithoutDeny(t *testing.T) {
	t.Run("allow without deny", func(t *testing.T) {
		allow := tree.Directive("allow", "10.0.0.0/8")
		root := tree.Root(
			tree.Block("server", nil,
				tree.Block("location", []string{"/"}, allow),
			),
		)

		issues := dispatch(t, root, AllowWithoutDeny{})
		if len(issues) != 1 {
			t.Fatalf("issues = %d, want 1", len(issues))
		}
		got := issues[0]
		if got.Severity() != issue.High {
			t.Errorf("severity = %s, want HIGH", got.Severity())
		}
		if nodes := got.Nodes(); len(nodes) != 1 || nodes[0] != allow {
			t.Errorf("nodes = %v, want the allow directive", nodes)
		}
		if got.Rule() != "allow_without_deny" {
			t.Errorf("rule = %q", got.Rule())
		}
	})

	tests := []struct {
		name string
		root *tree.Node
		want int
	}{
		{
			name: "nested allow all under deny",
			root: tree.Root(
				tree.Block("location", []string{"/"},
					tree.Directive("deny", "all"),
					tree.Block("location", []string{"/public"},
						tree.Directive("allow", "all"),
					),
				),
			),
			want: 0,
		},
		{
			name: "allow followed by deny",
			root: tree.Root(
				tree.Block("location", []string{"/admin"},
					tree.Directive("allow", "127.0.0.1"),
					tree.Directive("allow", "10.0.0.0/8"),
					tree.Directive("deny", "all"),
				),
			),
			want: 0,
		},
		{
			name: "deny in an outer scope does not count",
			root: tree.Root(
				tree.Block("server", nil,
					tree.Directive("deny", "all"),
					tree.Block("location", []string{"/"},
						tree.Directive("allow", "10.0.0.1"),
						tree.Directive("allow", "10.0.0.2"),
					),
				),
			),
			want: 2,
		},
		{
			name: "top-level allow",
			root: tree.Root(tree.Directive("allow", "10.0.0.1")),
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(dispatch(t, tt.root, AllowWithoutDeny{})); got != tt.want {
				t.Fatalf("issues = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidReferers(t *testing.T) {
	tests := []struct {
		args []string
		want int
	}{
		{args: []string{"none", "server_names"}, want: 1},
		{args: []string{"server_names", "*.example.com", "none"}, want: 1},
		{args: []string{"blocked", "server_names"}, want: 0},
		{args: []string{"NONE"}, want: 0},
	}

	for _, tt := range tests {
		root := tree.Root(
			tree.Block("location", []string{"/"}, tree.Directive("valid_referers", tt.args...)),
		)
		issues := dispatch(t, root, ValidReferers{})
		if len(issues) != tt.want {
			t.Fatalf("valid_referers %v: issues = %d, want %d", tt.args, len(issues), tt.want)
		}
		if tt.want > 0 && issues[0].Message() != issues[0].Summary() {
			t.Fatalf("message = %q, want summary", issues[0].Message())
		}
	}
}

func TestVersionDisclosureAudit(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"on", 1},
		{"ON", 1},
		{"build", 1},
		{"off", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			var d *tree.Node
			if tt.value == "" {
				d = tree.Directive(serverTokens)
			} else {
				d = tree.Directive(serverTokens, tt.value)
			}
			server := tree.Block("server", nil, d)
			root := tree.Root(server)

			issues := dispatch(t, root, VersionDisclosure{})
			if len(issues) != tt.want {
				t.Fatalf("issues = %d, want %d", len(issues), tt.want)
			}
			if tt.want == 0 {
				return
			}
			nodes := issues[0].Nodes()
			if len(nodes) != 2 || nodes[0] != d || nodes[1] != server {
				t.Fatalf("nodes = %v, want [directive, parent]", nodes)
			}
		})
	}
}

func TestVersionDisclosureFullConfig(t *testing.T) {
	t.Run("server missing server_tokens", func(t *testing.T) {
		server := tree.Block("server", nil,
			tree.Block("location", []string{"/"}),
		)
		root := tree.Root(tree.Block("http", nil, server))

		issues := dispatch(t, root, VersionDisclosure{})
		if len(issues) != 1 {
			t.Fatalf("issues = %d, want 1", len(issues))
		}
		if issues[0].Severity() != issue.High {
			t.Errorf("severity = %s, want HIGH", issues[0].Severity())
		}
		if nodes := issues[0].Nodes(); len(nodes) != 1 || nodes[0] != server {
			t.Errorf("nodes = %v, want the server block", nodes)
		}
	})

	tests := []struct {
		name string
		root *tree.Node
		want []issue.Severity
	}{
		{
			name: "empty server",
			root: tree.Root(tree.Block("http", nil, tree.Block("server", nil))),
			want: []issue.Severity{issue.High},
		},
		{
			name: "http off covers every server",
			root: tree.Root(tree.Block("http", nil,
				tree.Directive(serverTokens, "off"),
				tree.Block("server", nil),
				tree.Block("server", nil, tree.Block("location", []string{"/"})),
			)),
			want: nil,
		},
		{
			name: "server off covers its locations",
			root: tree.Root(tree.Block("http", nil,
				tree.Block("server", nil,
					tree.Directive(serverTokens, "off"),
					tree.Block("location", []string{"/"}),
				),
			)),
			want: nil,
		},
		{
			name: "explicit on is only reported once",
			root: tree.Root(tree.Block("http", nil,
				tree.Block("server", nil,
					tree.Directive(serverTokens, "on"),
					tree.Block("location", []string{"/"}),
				),
			)),
			want: []issue.Severity{issue.High},
		},
		{
			name: "nested location under an unsafe location",
			root: tree.Root(tree.Block("http", nil,
				tree.Block("server", nil,
					tree.Directive(serverTokens, "off"),
					tree.Block("location", []string{"/"},
						tree.Directive(serverTokens, "on"),
						tree.Block("location", []string{"/a"}),
					),
				),
			)),
			want: []issue.Severity{issue.High},
		},
		{
			name: "nested location under a safe server",
			root: tree.Root(tree.Block("http", nil,
				tree.Directive(serverTokens, "build"),
				tree.Block("server", nil,
					tree.Directive(serverTokens, "off"),
					tree.Block("location", []string{"/"},
						tree.Block("location", []string{"/a"}),
					),
				),
			)),
			want: []issue.Severity{issue.High},
		},
		{
			name: "one missing server among two",
			root: tree.Root(tree.Block("http", nil,
				tree.Block("server", nil, tree.Directive(serverTokens, "off")),
				tree.Block("server", nil),
			)),
			want: []issue.Severity{issue.High},
		},
		{
			name: "no http block",
			root: tree.Root(tree.Block("server", nil)),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []issue.Severity
			for _, i := range dispatch(t, tt.root, VersionDisclosure{}) {
				got = append(got, i.Severity())
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("severities = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuiltinsTogether(t *testing.T) {
	root := tree.Root(tree.Block("http", nil,
		tree.Directive(serverTokens, "build"),
		tree.Block("server", nil,
			tree.Block("location", []string{"/"},
				tree.Directive("allow", "10.0.0.0/8"),
				tree.Directive("valid_referers", "none"),
			),
		),
	))

	reg, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	res, err := engine.NewDispatcher(reg, engine.WithConcurrency(4)).Run(root)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var got []string
	for _, i := range res.Issues {
		got = append(got, i.Rule())
	}
	// Per-node findings in document order, then the whole-tree pass.
	want := []string{"version_disclosure", "allow_without_deny", "valid_referers", "version_disclosure"}
	if !slices.Equal(got, want) {
		t.Fatalf("rules = %v, want %v", got, want)
	}
}
