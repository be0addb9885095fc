// Package engine dispatches configuration tree nodes to security rules and
// collects what they report.
//
// Architecture overview:
//
//   - Rules implement Rule (Descriptor + Audit) and declare the directive
//     names they care about. Rules that need to reason across scopes also
//     implement FullConfigRule (PostAudit).
//   - Registry keeps rules in registration order and indexes them by
//     directive name once, so dispatch is a map lookup per node.
//   - Dispatcher validates the tree, walks it once in document order, hands
//     each node only to the rules indexed under its name, then runs every
//     PostAudit exactly once. Per-node audits may run on a worker pool; their
//     output is merged back in traversal order so results are deterministic.
//   - Each invocation is isolated: an error or panic becomes a Fault on the
//     Result and is logged, and dispatch continues with the remaining rules.
//
// Rules never see the aggregator directly. They report through the Reporter
// they are handed, which stamps the rule identity and default severity on
// every issue.
package engine
