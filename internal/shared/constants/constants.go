package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultConcurrency is the number of workers used for per-node rule dispatch.
	DefaultConcurrency = 1
	// MaxConcurrency caps the dispatcher worker pool regardless of configuration.
	MaxConcurrency = 64
	// WatchDebounce is how long the watcher waits for a burst of file events to settle.
	WatchDebounce = 300 * time.Millisecond
	// WatchMinInterval is the minimum time between two re-analyses in watch mode.
	WatchMinInterval = 2 * time.Second
)

const (
	// MetricsNamespace prefixes every exported Prometheus metric.
	MetricsNamespace = "nginx_audit"
	// RunsDirName is the directory under the results dir holding persisted runs.
	RunsDirName = "runs"
	// TelemetryFilename is the append-only JSONL file of run telemetry.
	TelemetryFilename = "telemetry.jsonl"
)
