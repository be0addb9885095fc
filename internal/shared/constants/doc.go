// Package constants centralizes configuration defaults shared across the CLI.
//
// File permissions, dispatcher worker limits, watch-mode timings and metric
// names live here so cmd/ and internal/ reference one value without
// introducing import cycles.
package constants
