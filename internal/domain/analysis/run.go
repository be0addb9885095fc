package analysis

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/khanhnv2901/nginx-audit/internal/issue"
	sharedErrors "github.com/khanhnv2901/nginx-audit/internal/shared/errors"
)

// Run is one analysis of a configuration. It owns the findings and faults
// produced by the rules and is the unit persisted in run history.
type Run struct {
	id          string
	configName  string
	startedAt   time.Time
	completedAt time.Time
	status      RunStatus
	findings    []Finding
	faults      []string
	stats       Stats
	metadata    Metadata
}

// RunStatus represents the status of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Stats mirrors the dispatcher counters of the run.
type Stats struct {
	Nodes       int
	Invocations int
	Duration    time.Duration
}

// Metadata contains integrity information filled in when the run is stored.
type Metadata struct {
	Hash          string
	HashAlgorithm string
}

// Finding is the persisted form of an issue. Nodes are reduced to their
// rendering and location so a stored run does not need the tree.
type Finding struct {
	Rule        string
	Summary     string
	Description string
	HelpURL     string
	Severity    issue.Severity
	Reason      string
	Nodes       []NodeRef
}

// NodeRef identifies a directive a finding points at.
type NodeRef struct {
	Directive string
	File      string
	Line      int
}

// Message returns the reason, or the summary when the rule gave none.
func (f Finding) Message() string {
	if f.Reason != "" {
		return f.Reason
	}
	return f.Summary
}

// FindingFromIssue converts a dispatcher issue.
func FindingFromIssue(i issue.Issue) Finding {
	f := Finding{
		Rule:        i.Rule(),
		Summary:     i.Summary(),
		Description: i.Description(),
		HelpURL:     i.HelpURL(),
		Severity:    i.Severity(),
		Reason:      i.Reason(),
	}
	for _, n := range i.Nodes() {
		loc := n.Location()
		f.Nodes = append(f.Nodes, NodeRef{Directive: n.String(), File: loc.File, Line: loc.Line})
	}
	return f
}

// NewRun creates a pending run. id must be a UUID, as issued by the
// dispatcher for every dispatch.
func NewRun(id, configName string) (*Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", sharedErrors.ErrInvalidRunID, id)
	}
	if configName == "" {
		return nil, sharedErrors.ErrEmptyConfigName
	}

	return &Run{
		id:         id,
		configName: configName,
		startedAt:  time.Now(),
		status:     RunStatusPending,
		findings:   make([]Finding, 0),
	}, nil
}

// Reconstruct creates a run from persisted data
func Reconstruct(id, configName string, startedAt, completedAt time.Time, status RunStatus,
	findings []Finding, faults []string, stats Stats, metadata Metadata) *Run {
	if findings == nil {
		findings = make([]Finding, 0)
	}
	return &Run{
		id:          id,
		configName:  configName,
		startedAt:   startedAt,
		completedAt: completedAt,
		status:      status,
		findings:    findings,
		faults:      faults,
		stats:       stats,
		metadata:    metadata,
	}
}

// Start marks the run as running
func (r *Run) Start() error {
	if r.status != RunStatusPending {
		return errors.New("run can only be started from pending status")
	}
	r.status = RunStatusRunning
	r.startedAt = time.Now()
	return nil
}

// Complete marks the run as completed
func (r *Run) Complete(stats Stats) error {
	if r.status != RunStatusRunning {
		return errors.New("run can only be completed from running status")
	}
	r.status = RunStatusCompleted
	r.completedAt = time.Now()
	r.stats = stats
	return nil
}

// Fail marks the run as failed
func (r *Run) Fail() error {
	if r.status == RunStatusCompleted {
		return sharedErrors.ErrRunCompleted
	}
	r.status = RunStatusFailed
	r.completedAt = time.Now()
	return nil
}

func (r *Run) finished() bool {
	return r.status == RunStatusCompleted || r.status == RunStatusFailed
}

// AddFindings appends findings in the order given.
func (r *Run) AddFindings(findings ...Finding) error {
	if r.finished() {
		return sharedErrors.ErrRunCompleted
	}
	r.findings = append(r.findings, findings...)
	return nil
}

// AddFault records a rule that could not complete.
func (r *Run) AddFault(msg string) error {
	if r.finished() {
		return sharedErrors.ErrRunCompleted
	}
	r.faults = append(r.faults, msg)
	return nil
}

// SetHash records the digest of the stored run.
func (r *Run) SetHash(hash, algorithm string) error {
	if hash == "" {
		return errors.New("hash cannot be empty")
	}
	if algorithm != "sha256" {
		return errors.New("unsupported hash algorithm")
	}
	r.metadata = Metadata{Hash: hash, HashAlgorithm: algorithm}
	return nil
}

// Getters

func (r *Run) ID() string {
	return r.id
}

func (r *Run) ConfigName() string {
	return r.configName
}

func (r *Run) StartedAt() time.Time {
	return r.startedAt
}

func (r *Run) CompletedAt() time.Time {
	return r.completedAt
}

func (r *Run) Status() RunStatus {
	return r.status
}

func (r *Run) Findings() []Finding {
	return append([]Finding{}, r.findings...)
}

func (r *Run) Faults() []string {
	return append([]string{}, r.faults...)
}

func (r *Run) Stats() Stats {
	return r.stats
}

func (r *Run) Metadata() Metadata {
	return r.metadata
}

// CountBySeverity returns how many findings carry each severity.
func (r *Run) CountBySeverity() map[issue.Severity]int {
	counts := make(map[issue.Severity]int, len(issue.Severities()))
	for _, f := range r.findings {
		counts[f.Severity]++
	}
	return counts
}

// MaxSeverity returns the highest severity among the findings.
func (r *Run) MaxSeverity() issue.Severity {
	highest := issue.Unspecified
	for _, f := range r.findings {
		if f.Severity > highest {
			highest = f.Severity
		}
	}
	return highest
}

// FilterMinSeverity returns a copy of the run keeping only findings at or
// above floor.
func (r *Run) FilterMinSeverity(floor issue.Severity) *Run {
	out := *r
	out.findings = make([]Finding, 0, len(r.findings))
	for _, f := range r.findings {
		if f.Severity.AtLeast(floor) {
			out.findings = append(out.findings, f)
		}
	}
	out.faults = r.Faults()
	return &out
}
