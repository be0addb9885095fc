package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/khanhnv2901/nginx-audit/internal/issue"
	sharedErrors "github.com/khanhnv2901/nginx-audit/internal/shared/errors"
)

// Registry holds rules in registration order and indexes them by the
// directive names they are interested in.
type Registry struct {
	rules  []Rule
	byName map[string]Rule
	index  map[string][]Rule
}

// NewRegistry returns a registry holding rules, in the given order.
func NewRegistry(rules ...Rule) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]Rule),
		index:  make(map[string][]Rule),
	}
	if err := r.Register(rules...); err != nil {
		return nil, err
	}
	return r, nil
}

// Register appends rules. Registration order decides which rule runs first
// when several are interested in the same directive.
func (r *Registry) Register(rules ...Rule) error {
	for _, rule := range rules {
		if rule == nil {
			return fmt.Errorf("%w: nil rule", sharedErrors.ErrInvalidRule)
		}
		desc := rule.Descriptor()
		if strings.TrimSpace(desc.Name) == "" {
			return fmt.Errorf("%w: rule name cannot be empty", sharedErrors.ErrInvalidRule)
		}
		if desc.Severity == issue.Unspecified || !desc.Severity.IsValid() {
			return fmt.Errorf("%w: rule %s needs a default severity", sharedErrors.ErrInvalidRule, desc.Name)
		}
		if _, dup := r.byName[desc.Name]; dup {
			return fmt.Errorf("%w: %s", sharedErrors.ErrDuplicateRule, desc.Name)
		}

		r.rules = append(r.rules, rule)
		r.byName[desc.Name] = rule

		seen := make(map[string]struct{}, len(desc.Directives))
		for _, directive := range desc.Directives {
			if _, ok := seen[directive]; ok {
				continue
			}
			seen[directive] = struct{}{}
			r.index[directive] = append(r.index[directive], rule)
		}
	}
	return nil
}

// Rules returns every registered rule in registration order.
func (r *Registry) Rules() []Rule {
	return append([]Rule{}, r.rules...)
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// Rule returns the rule registered under name.
func (r *Registry) Rule(name string) (Rule, bool) {
	rule, ok := r.byName[name]
	return rule, ok
}

// For returns the rules interested in directive, in registration order.
func (r *Registry) For(directive string) []Rule {
	return slices.Clone(r.index[directive])
}

// interested is For without the copy, for the dispatch loop.
func (r *Registry) interested(directive string) []Rule {
	return r.index[directive]
}

// FullConfigRules returns the rules that take part in the whole-tree pass.
func (r *Registry) FullConfigRules() []FullConfigRule {
	var out []FullConfigRule
	for _, rule := range r.rules {
		if fc, ok := rule.(FullConfigRule); ok {
			out = append(out, fc)
		}
	}
	return out
}

// Select returns a new registry restricted to enable (all rules when empty)
// minus disable. Unknown names are an error so typos do not silently drop
// coverage.
func (r *Registry) Select(enable, disable []string) (*Registry, error) {
	for _, name := range append(append([]string{}, enable...), disable...) {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("%w: %s", sharedErrors.ErrUnknownRule, name)
		}
	}

	enabled := toSet(enable)
	disabled := toSet(disable)

	selected := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		name := rule.Descriptor().Name
		if len(enabled) > 0 {
			if _, ok := enabled[name]; !ok {
				continue
			}
		}
		if _, ok := disabled[name]; ok {
			continue
		}
		selected = append(selected, rule)
	}
	return NewRegistry(selected...)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
