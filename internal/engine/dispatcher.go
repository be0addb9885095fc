package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khanhnv2901/nginx-audit/internal/issue"
	consts "github.com/khanhnv2901/nginx-audit/internal/shared/constants"
	"github.com/khanhnv2901/nginx-audit/internal/tree"
)

// Stats summarizes a dispatch run.
type Stats struct {
	Nodes       int
	Invocations int
	Faults      int
	Duration    time.Duration
}

// Result is the outcome of one dispatch run.
type Result struct {
	RunID  string
	Issues []issue.Issue
	Faults []*Fault
	Stats  Stats
}

// Dispatcher feeds tree nodes to the rules of a registry.
type Dispatcher struct {
	registry    *Registry
	logger      *zap.Logger
	concurrency int
	metrics     *Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used to report rule faults.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithConcurrency sets how many per-node audits may run at once.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		switch {
		case n < 1:
			d.concurrency = 1
		case n > consts.MaxConcurrency:
			d.concurrency = consts.MaxConcurrency
		default:
			d.concurrency = n
		}
	}
}

// WithMetrics records dispatch activity into m.
func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// NewDispatcher returns a dispatcher over reg.
func NewDispatcher(reg *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:    reg,
		logger:      zap.NewNop(),
		concurrency: consts.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// task is one rule invocation and what it produced.
type task struct {
	rule   Rule
	node   *tree.Node
	phase  Phase
	issues []issue.Issue
	fault  *Fault
}

// Run validates root, walks it once in document order invoking each rule
// interested in a node, then runs every full-config rule once over the root.
//
// The returned issues are in traversal order followed by full-config output
// in registration order, independent of the configured concurrency. A tree
// that violates the structural contract is rejected before any rule runs.
func (d *Dispatcher) Run(root *tree.Node) (*Result, error) {
	if err := tree.Validate(root); err != nil {
		return nil, fmt.Errorf("cannot dispatch rules: %w", err)
	}

	start := time.Now()
	result := &Result{RunID: uuid.NewString()}
	logger := d.logger.With(zap.String("run_id", result.RunID))

	var tasks []*task
	for n := range root.Walk() {
		result.Stats.Nodes++
		for _, rule := range d.registry.interested(n.Name()) {
			tasks = append(tasks, &task{rule: rule, node: n, phase: PhaseAudit})
		}
	}

	d.runAll(tasks)

	// Every per-node audit has returned at this point.
	for _, rule := range d.registry.FullConfigRules() {
		t := &task{rule: rule, node: root, phase: PhasePostAudit}
		d.execute(t)
		tasks = append(tasks, t)
	}

	agg := issue.NewAggregator()
	for _, t := range tasks {
		agg.Add(t.issues...)
		if t.fault != nil {
			result.Faults = append(result.Faults, t.fault)
			logger.Warn("rule_fault",
				zap.String("rule", t.fault.Rule),
				zap.String("phase", string(t.fault.Phase)),
				zap.String("node", t.node.Name()),
				zap.Stringer("location", t.node.Location()),
				zap.Bool("panic", t.fault.Panicked),
				zap.Error(t.fault.Err),
			)
		}
	}

	result.Issues = agg.Issues()
	result.Stats.Invocations = len(tasks)
	result.Stats.Faults = len(result.Faults)
	result.Stats.Duration = time.Since(start)

	d.metrics.observeIssues(result.Issues)
	d.metrics.observeRun(result.Stats.Duration)

	logger.Debug("dispatch_complete",
		zap.Int("nodes", result.Stats.Nodes),
		zap.Int("invocations", result.Stats.Invocations),
		zap.Int("issues", len(result.Issues)),
		zap.Int("faults", result.Stats.Faults),
		zap.Duration("duration", result.Stats.Duration),
	)

	return result, nil
}

// runAll executes per-node tasks on a bounded worker pool. Each task writes
// only to itself, so no locking is needed around results.
func (d *Dispatcher) runAll(tasks []*task) {
	if d.concurrency <= 1 || len(tasks) < 2 {
		for _, t := range tasks {
			d.execute(t)
		}
		return
	}

	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t *task) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			d.execute(t)
		}(t)
	}
	wg.Wait()
}

func (d *Dispatcher) execute(t *task) {
	desc := t.rule.Descriptor()
	rep := &reporter{desc: desc}

	t.fault = invoke(desc.Name, t.phase, t.node, func() error {
		if t.phase == PhasePostAudit {
			return t.rule.(FullConfigRule).PostAudit(t.node, rep)
		}
		return t.rule.Audit(t.node, rep)
	})
	t.issues = rep.issues

	d.metrics.observeInvocation(desc.Name, t.phase, t.fault)
}
