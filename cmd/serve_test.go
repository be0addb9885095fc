package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewAPIServer(t *testing.T) {
	setupTestAppContext(t)

	handler, err := newAPIServer(globalAppContext, serveOptions{})
	if err != nil {
		t.Fatalf("newAPIServer returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze?save=true", strings.NewReader(insecureConfig))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("analyze status = %d: %s", rr.Code, rr.Body.String())
	}

	var run struct {
		RunID  string `json:"run_id"`
		Issues int    `json:"issues"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if run.Issues != 2 {
		t.Fatalf("issues = %d, want 2", run.Issues)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))
	if !strings.Contains(rr.Body.String(), "version_disclosure") {
		t.Fatalf("rules missing from listing: %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "nginx_audit_rule_invocations_total") {
		t.Fatalf("unexpected metrics response %d", rr.Code)
	}
}

func TestHealthAPIService(t *testing.T) {
	env := setupTestAppContext(t)

	svc := &healthAPIService{resultsDir: env.ResultsDir}
	if err := svc.Check(context.Background()); err != nil {
		t.Fatalf("Check returned error: %v", err)
	}

	missing := &healthAPIService{resultsDir: env.TmpDir + "/missing"}
	if err := missing.Check(context.Background()); err == nil {
		t.Fatal("expected error for missing results dir")
	}
}

func TestShutdownServer(t *testing.T) {
	srv := &http.Server{Handler: http.NewServeMux()}
	if err := shutdownServer(srv, time.Second); err != nil {
		t.Fatalf("shutdownServer returned error: %v", err)
	}
}
