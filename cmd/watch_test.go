package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/khanhnv2901/nginx-audit/cmd/testutil"
	analysisapp "github.com/khanhnv2901/nginx-audit/internal/application/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/issue"
	"github.com/khanhnv2901/nginx-audit/internal/rules"
)

func TestAnalyzeOnce(t *testing.T) {
	env := testutil.NewTestEnv(t)
	good := env.WriteConfig("nginx.conf", insecureConfig)
	broken := env.WriteConfig("broken.conf", "http {\n")

	reg, err := rules.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	svc := analysisapp.NewService(reg, nil, zaptest.NewLogger(t))
	opts := analyzeOptions{format: "text", minSeverity: issue.Low}

	var buf bytes.Buffer
	analyzeOnce(context.Background(), &buf, svc, good, opts)
	if !strings.Contains(buf.String(), "Summary: 2 issue(s)") {
		t.Fatalf("unexpected report:\n%s", buf.String())
	}

	buf.Reset()
	analyzeOnce(context.Background(), &buf, svc, broken, opts)
	if !strings.Contains(buf.String(), "✗") || !strings.Contains(buf.String(), "broken.conf") {
		t.Fatalf("expected failure to be printed:\n%s", buf.String())
	}
}

func TestWatchCommandRejectsBadFormat(t *testing.T) {
	env := testutil.NewTestEnv(t)
	path := env.WriteConfig("nginx.conf", insecureConfig)

	_, _, err := executeCommand(t, env, "watch", "--format", "pdf", path)
	if err == nil || !strings.Contains(err.Error(), "unknown report format") {
		t.Fatalf("expected format error, got %v", err)
	}
}
