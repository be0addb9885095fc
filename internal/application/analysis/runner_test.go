package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	sharedErrors "github.com/khanhnv2901/nginx-audit/internal/shared/errors"
)

func TestRunnerAnalyzeFiles(t *testing.T) {
	svc := newTestService(t, false)

	good := writeConfig(t, insecureConfig)
	bad := writeConfig(t, "server {")
	missing := filepath.Join(t.TempDir(), "missing.conf")
	paths := []string{good, bad, missing, good}

	var calls atomic.Int32
	runner := &Runner{Service: svc, Concurrency: 3, RateLimit: 100}
	results := runner.AnalyzeFiles(context.Background(), paths, func(FileResult) {
		calls.Add(1)
	})

	if int(calls.Load()) != len(paths) {
		t.Fatalf("callback called %d times, want %d", calls.Load(), len(paths))
	}
	if len(results) != len(paths) {
		t.Fatalf("got %d results, want %d", len(results), len(paths))
	}
	for i, res := range results {
		if res.Path != paths[i] {
			t.Fatalf("result %d path = %s, want %s", i, res.Path, paths[i])
		}
	}

	if results[0].Err != nil || len(results[0].Run.Findings()) != 2 {
		t.Fatalf("unexpected first result %+v", results[0])
	}
	if !errors.Is(results[1].Err, sharedErrors.ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", results[1].Err)
	}
	if results[2].Err == nil {
		t.Fatal("expected error for missing file")
	}
	if results[3].Run == nil || results[3].Run.ID() == results[0].Run.ID() {
		t.Fatal("expected an independent run for the repeated file")
	}
}

func TestRunnerCanceled(t *testing.T) {
	svc := newTestService(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &Runner{Service: svc}
	results := runner.AnalyzeFiles(ctx, []string{writeConfig(t, insecureConfig)}, nil)
	if results[0].Err == nil {
		t.Fatal("expected error for canceled context")
	}
}
