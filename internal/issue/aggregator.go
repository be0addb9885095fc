package issue

import (
	"sort"
	"sync"
)

// Aggregator collects issues for one analysis run. Add is safe for
// concurrent use; the stored order is the order of Add calls.
type Aggregator struct {
	mu     sync.Mutex
	issues []Issue
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add appends issues. Duplicates are kept.
func (a *Aggregator) Add(issues ...Issue) {
	if len(issues) == 0 {
		return
	}
	a.mu.Lock()
	a.issues = append(a.issues, issues...)
	a.mu.Unlock()
}

// Issues returns a copy of everything collected so far, in insertion order.
func (a *Aggregator) Issues() []Issue {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Issue, len(a.issues))
	copy(out, a.issues)
	return out
}

// Len returns the number of collected issues.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.issues)
}

// SortBySeverity returns a copy ordered from most to least severe. Issues of
// equal severity keep their relative order.
func SortBySeverity(issues []Issue) []Issue {
	out := make([]Issue, len(issues))
	copy(out, issues)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].severity > out[j].severity
	})
	return out
}

// FilterMinSeverity keeps issues at or above floor.
func FilterMinSeverity(issues []Issue, floor Severity) []Issue {
	out := make([]Issue, 0, len(issues))
	for _, is := range issues {
		if is.severity.AtLeast(floor) {
			out = append(out, is)
		}
	}
	return out
}

// CountBySeverity tallies issues per level.
func CountBySeverity(issues []Issue) map[Severity]int {
	counts := make(map[Severity]int, len(severityNames))
	for _, is := range issues {
		counts[is.severity]++
	}
	return counts
}

// MaxSeverity returns the highest level present, or Unspecified when empty.
func MaxSeverity(issues []Issue) Severity {
	highest := Unspecified
	for _, is := range issues {
		if is.severity > highest {
			highest = is.severity
		}
	}
	return highest
}
