// Package rules contains the built-in nginx security checks.
//
// Each rule is a stateless value implementing engine.Rule; rules that need a
// view of the whole configuration also implement engine.FullConfigRule.
// All returns them in the order the dispatcher should run them.
package rules
