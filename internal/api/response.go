package api

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/khanhnv2901/nginx-audit/internal/domain/analysis"
)

// RuleInfo describes one rule served by /api/v1/rules.
type RuleInfo struct {
	Name       string   `json:"name"`
	Severity   string   `json:"severity"`
	Directives []string `json:"directives"`
	FullConfig bool     `json:"full_config"`
	Summary    string   `json:"summary"`
	HelpURL    string   `json:"help_url,omitempty"`
}

type RunSummary struct {
	RunID       string    `json:"run_id"`
	Config      string    `json:"config"`
	Status      string    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	Issues      int       `json:"issues"`
	MaxSeverity string    `json:"max_severity,omitempty"`
}

type RunResponse struct {
	RunSummary
	Nodes    int       `json:"nodes"`
	Findings []Finding `json:"findings"`
	Faults   []string  `json:"faults,omitempty"`
	Hash     string    `json:"hash,omitempty"`
}

type Finding struct {
	Rule      string     `json:"rule"`
	Severity  string     `json:"severity"`
	Summary   string     `json:"summary"`
	Message   string     `json:"message"`
	HelpURL   string     `json:"help_url,omitempty"`
	Locations []Location `json:"locations"`
}

type Location struct {
	Directive string `json:"directive"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

func newRunSummary(run *analysis.Run) RunSummary {
	summary := RunSummary{
		RunID:     run.ID(),
		Config:    run.ConfigName(),
		Status:    string(run.Status()),
		StartedAt: run.StartedAt().UTC(),
		Issues:    len(run.Findings()),
	}
	if len(run.Findings()) > 0 {
		summary.MaxSeverity = run.MaxSeverity().String()
	}
	return summary
}

func newRunResponse(run *analysis.Run) RunResponse {
	resp := RunResponse{
		RunSummary: newRunSummary(run),
		Nodes:      run.Stats().Nodes,
		Findings:   make([]Finding, 0, len(run.Findings())),
		Faults:     run.Faults(),
		Hash:       run.Metadata().Hash,
	}
	for _, f := range run.Findings() {
		finding := Finding{
			Rule:      f.Rule,
			Severity:  f.Severity.String(),
			Summary:   f.Summary,
			Message:   f.Message(),
			HelpURL:   f.HelpURL,
			Locations: make([]Location, 0, len(f.Nodes)),
		}
		for _, n := range f.Nodes {
			finding.Locations = append(finding.Locations, Location(n))
		}
		resp.Findings = append(resp.Findings, finding)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error body. Server errors are logged and replaced
// with a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.requestLogger(r).Error("internal_server_error",
			zap.Error(err),
			zap.Int("status", status),
		)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
