// Package tree models a parsed nginx configuration as an immutable tree of
// directives and provides the scope queries rules use to reason about it.
//
// A tree is produced once, either by the parser through Builder or in code
// with the Directive/Block/Root constructors, and is never modified after
// that. Every non-root node keeps a non-owning back-pointer to its parent;
// ownership only flows from parent to children.
//
// Scope queries:
//
//   - Lookup answers "does this scope itself set X?" (direct children only).
//   - LookupAncestor answers "what does this scope inherit for X?" by applying
//     Lookup to each enclosing scope, nearest first.
//   - FindContexts lazily enumerates nested contexts of one type, e.g. every
//     location below a server, at any depth.
//
// Validate checks the structural invariants the queries depend on; the
// engine calls it before dispatching any rule.
package tree
