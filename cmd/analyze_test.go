package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/khanhnv2901/nginx-audit/cmd/testutil"
	"github.com/khanhnv2901/nginx-audit/internal/domain/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/issue"
)

func decodeReport(t *testing.T, out string) reportDocument {
	t.Helper()
	var doc reportDocument
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("invalid JSON report: %v\n%s", err, out)
	}
	return doc
}

func TestAnalyzeCommandJSON(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.WriteConfig("nginx.conf", insecureConfig)

	stdout, _, err := executeCommand(t, env, "analyze", "--format", "json", path)
	if err != nil {
		t.Fatalf("analyze returned error: %v", err)
	}

	doc := decodeReport(t, stdout)
	if len(doc.Runs) != 1 || doc.Runs[0].Config != path {
		t.Fatalf("unexpected runs: %+v", doc.Runs)
	}
	if doc.Summary.Total != 2 || doc.Summary.High != 2 {
		t.Fatalf("summary = %+v", doc.Summary)
	}
	if doc.Runs[0].Findings[0].Rule != "allow_without_deny" {
		t.Fatalf("first finding = %+v", doc.Runs[0].Findings[0])
	}
	if doc.Runs[0].Stats.Nodes != 6 {
		t.Errorf("nodes = %d, want 6", doc.Runs[0].Stats.Nodes)
	}
}

func TestAnalyzeCommandTextClean(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.WriteConfig("nginx.conf", secureConfig)

	stdout, _, err := executeCommand(t, env, "analyze", path)
	if err != nil {
		t.Fatalf("analyze returned error: %v", err)
	}
	if !strings.Contains(stdout, "No issues found") || !strings.Contains(stdout, "Summary: 0 issue(s)") {
		t.Fatalf("unexpected output:\n%s", stdout)
	}
}

func TestAnalyzeCommandFailOn(t *testing.T) {
	env := testutil.NewTestEnv(t)
	insecure := env.WriteConfig("insecure.conf", insecureConfig)
	secure := env.WriteConfig("secure.conf", secureConfig)

	tests := []struct {
		name      string
		args      []string
		wantCount int
	}{
		{name: "high threshold", args: []string{"--fail-on", "high", insecure}, wantCount: 2},
		{name: "disabled rule", args: []string{"--fail-on", "low", "--disable", "version_disclosure", insecure}, wantCount: 1},
		{name: "clean config", args: []string{"--fail-on", "low", secure}},
		{name: "batch", args: []string{"--fail-on", "high", "--jobs", "2", secure, insecure}, wantCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, env, append([]string{"analyze", "-f", "json"}, tt.args...)...)
			if tt.wantCount == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var found *IssuesFoundError
			if !errors.As(err, &found) {
				t.Fatalf("expected IssuesFoundError, got %v", err)
			}
			if found.Count != tt.wantCount {
				t.Fatalf("count = %d, want %d", found.Count, tt.wantCount)
			}
		})
	}
}

func TestAnalyzeCommandSeverityFilter(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.WriteConfig("nginx.conf", `server {
    server_tokens on;
    valid_referers none server_names;
}
`)

	stdout, _, err := executeCommand(t, env, "analyze", "-f", "json", "--severity", "high", "--enable", "valid_referers", path)
	if err != nil {
		t.Fatalf("analyze returned error: %v", err)
	}
	doc := decodeReport(t, stdout)
	if doc.Summary.Total != 1 || doc.Runs[0].Findings[0].Rule != "valid_referers" {
		t.Fatalf("unexpected findings: %+v", doc.Runs[0].Findings)
	}
}

func TestAnalyzeCommandErrors(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.WriteConfig("nginx.conf", insecureConfig)
	broken := env.WriteConfig("broken.conf", "http {\n    server {\n")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "unknown format", args: []string{"--format", "pdf", path}, wantErr: `unknown report format "pdf"`},
		{name: "bad severity", args: []string{"--severity", "critical", path}, wantErr: "invalid --severity"},
		{name: "unknown rule", args: []string{"--enable", "no_such_rule", path}, wantErr: "no_such_rule"},
		{name: "missing file", args: []string{filepath.Join(env.TmpDir, "missing.conf")}, wantErr: "missing.conf"},
		{name: "syntax error", args: []string{broken}, wantErr: "broken.conf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, env, append([]string{"analyze"}, tt.args...)...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAnalyzeCommandSaveTelemetryMetrics(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.WriteConfig("nginx.conf", insecureConfig)
	metricsFile := filepath.Join(env.TmpDir, "metrics.prom")

	stdout, _, err := executeCommand(t, env, "analyze", "-f", "json", "--save", "--telemetry", "--metrics-file", metricsFile, path)
	if err != nil {
		t.Fatalf("analyze returned error: %v", err)
	}
	runID := decodeReport(t, stdout).Runs[0].RunID

	for _, name := range []string{runID + ".json", runID + ".json.sha256"} {
		if _, err := os.Stat(filepath.Join(env.RunsPath(), name)); err != nil {
			t.Errorf("expected %s to be saved: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(env.ResultsDir, "telemetry.jsonl")); err != nil {
		t.Errorf("expected telemetry file: %v", err)
	}

	metrics, err := os.ReadFile(metricsFile)
	if err != nil {
		t.Fatalf("expected metrics file: %v", err)
	}
	if !strings.Contains(string(metrics), "nginx_audit_rule_invocations_total") {
		t.Errorf("metrics file missing invocation counter:\n%s", metrics)
	}
}

func TestCheckFailOn(t *testing.T) {
	runs := []*analysis.Run{
		newTestRun(t, "a.conf",
			analysis.Finding{Rule: "r", Severity: issue.Medium},
			analysis.Finding{Rule: "r", Severity: issue.Low},
		),
	}

	if err := checkFailOn(runs, issue.Unspecified); err != nil {
		t.Fatalf("unspecified threshold should never fail: %v", err)
	}
	if err := checkFailOn(runs, issue.High); err != nil {
		t.Fatalf("no HIGH findings, got %v", err)
	}
	err := checkFailOn(runs, issue.Low)
	var found *IssuesFoundError
	if !errors.As(err, &found) || found.Count != 2 || found.Threshold != issue.Low {
		t.Fatalf("unexpected error %v", err)
	}
}
