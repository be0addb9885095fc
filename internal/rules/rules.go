package rules

import "github.com/khanhnv2901/nginx-audit/internal/engine"

const helpBaseURL = "https://gixy.io/plugins/"

func helpURL(name string) string {
	return helpBaseURL + name + "/"
}

// All returns every built-in rule in registration order.
func All() []engine.Rule {
	return []engine.Rule{
		AllowWithoutDeny{},
		ValidReferers{},
		VersionDisclosure{},
	}
}

// NewRegistry returns a registry holding the built-in rules.
func NewRegistry() (*engine.Registry, error) {
	return engine.NewRegistry(All()...)
}
