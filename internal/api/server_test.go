package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap/zaptest"

	analysisapp "github.com/khanhnv2901/nginx-audit/internal/application/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/engine"
	jsonrepo "github.com/khanhnv2901/nginx-audit/internal/infrastructure/persistence/json"
	"github.com/khanhnv2901/nginx-audit/internal/rules"
)

const insecureConfig = `http {
    server {
        listen 80;
        location / {
            allow 10.0.0.0/8;
        }
    }
}
`

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()

	reg, err := rules.NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	repo, err := jsonrepo.NewRunRepository(t.TempDir())
	if err != nil {
		t.Fatalf("NewRunRepository returned error: %v", err)
	}
	metrics := prometheus.NewRegistry()
	svc := analysisapp.NewService(reg, repo, zaptest.NewLogger(t), engine.WithMetrics(engine.NewMetrics(metrics)))

	cfg := Config{
		Analysis: svc,
		Rules:    []RuleInfo{{Name: "allow_without_deny", Severity: "HIGH", Directives: []string{"allow"}}},
		Metrics:  promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}),
		Logger:   zaptest.NewLogger(t),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewServer(cfg)
}

func do(t *testing.T, srv http.Handler, method, target string, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestAnalyzeAndRuns(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := do(t, srv, http.MethodPost, "/api/v1/analyze?name=site.conf&save=true", insecureConfig, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("analyze status = %d: %s", rr.Code, rr.Body.String())
	}
	run := decode[RunResponse](t, rr)
	if run.Config != "site.conf" || run.Issues != 2 || run.MaxSeverity != "HIGH" {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Findings[0].Rule != "allow_without_deny" || run.Findings[0].Locations[0].Line != 5 {
		t.Fatalf("unexpected first finding %+v", run.Findings[0])
	}
	if run.Hash == "" {
		t.Fatal("saved run should carry its digest")
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/runs", "", nil)
	summaries := decode[[]RunSummary](t, rr)
	if len(summaries) != 1 || summaries[0].RunID != run.RunID {
		t.Fatalf("unexpected run list %+v", summaries)
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/runs/"+run.RunID, "", nil)
	if got := decode[RunResponse](t, rr); got.RunID != run.RunID || len(got.Findings) != 2 {
		t.Fatalf("unexpected stored run %+v", got)
	}

	rr = do(t, srv, http.MethodGet, "/api/v1/runs/"+run.RunID+"/verify", "", nil)
	if got := decode[map[string]any](t, rr); got["verified"] != true {
		t.Fatalf("expected verified run, got %v", got)
	}
}

func TestAnalyzeParameters(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name       string
		target     string
		body       string
		wantStatus int
		wantIssues int
	}{
		{name: "default", target: "/api/v1/analyze", body: insecureConfig, wantStatus: http.StatusOK, wantIssues: 2},
		{name: "severity filter", target: "/api/v1/analyze?severity=high", body: "location / { valid_referers none; server_tokens off; }", wantStatus: http.StatusOK, wantIssues: 1},
		{name: "bad severity", target: "/api/v1/analyze?severity=urgent", body: insecureConfig, wantStatus: http.StatusBadRequest},
		{name: "bad save", target: "/api/v1/analyze?save=maybe", body: insecureConfig, wantStatus: http.StatusBadRequest},
		{name: "syntax error", target: "/api/v1/analyze", body: "http {", wantStatus: http.StatusUnprocessableEntity},
		{name: "too large", target: "/api/v1/analyze", body: strings.Repeat("#", maxConfigBytes+1), wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, tt.target, tt.body, nil)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if got := decode[RunResponse](t, rr); got.Issues != tt.wantIssues {
					t.Fatalf("issues = %d, want %d", got.Issues, tt.wantIssues)
				}
			}
		})
	}
}

func TestRoutesErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{name: "analyze GET", method: http.MethodGet, target: "/api/v1/analyze", wantStatus: http.StatusMethodNotAllowed},
		{name: "runs POST", method: http.MethodPost, target: "/api/v1/runs", wantStatus: http.StatusMethodNotAllowed},
		{name: "unknown run", method: http.MethodGet, target: "/api/v1/runs/7d444840-9dc0-11d1-b245-5ffdce74fad2", wantStatus: http.StatusNotFound},
		{name: "invalid run id", method: http.MethodGet, target: "/api/v1/runs/a%5Cb", wantStatus: http.StatusBadRequest},
		{name: "empty run id", method: http.MethodGet, target: "/api/v1/runs/", wantStatus: http.StatusNotFound},
		{name: "unknown action", method: http.MethodGet, target: "/api/v1/runs/abc/export", wantStatus: http.StatusNotFound},
		{name: "preflight", method: http.MethodOptions, target: "/api/v1/analyze", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.method, tt.target, "", nil)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestHealthRulesMetrics(t *testing.T) {
	srv := newTestServer(t, nil)

	if rr := do(t, srv, http.MethodGet, "/api/v1/health", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/v1/health", "", map[string]string{"X-Request-ID": "req-1"}); rr.Header().Get("X-Request-ID") != "req-1" {
		t.Fatalf("request ID not echoed: %v", rr.Header())
	}

	rules := decode[[]RuleInfo](t, do(t, srv, http.MethodGet, "/api/v1/rules", "", nil))
	if len(rules) != 1 || rules[0].Name != "allow_without_deny" {
		t.Fatalf("unexpected rules %+v", rules)
	}

	do(t, srv, http.MethodPost, "/api/v1/analyze", insecureConfig, nil)
	rr := do(t, srv, http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "nginx_audit_issues_total") {
		t.Fatalf("unexpected metrics response %d:\n%s", rr.Code, rr.Body.String())
	}
}

type failingHealth struct{}

func (failingHealth) Check(context.Context) error { return errors.New("results dir unwritable") }

func TestHealthFailureIsSanitized(t *testing.T) {
	srv := newTestServer(t, func(c *Config) { c.Health = failingHealth{} })

	rr := do(t, srv, http.MethodGet, "/api/v1/health", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "unwritable") {
		t.Fatalf("internal error leaked: %s", rr.Body.String())
	}
}

func TestAuth(t *testing.T) {
	srv := newTestServer(t, func(c *Config) { c.AuthToken = "s3cret" })

	if rr := do(t, srv, http.MethodGet, "/api/v1/health", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/v1/health", "", map[string]string{"X-Auth-Token": "wrong"}); rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/v1/health", "", map[string]string{"X-Auth-Token": "s3cret"}); rr.Code != http.StatusOK {
		t.Fatalf("valid token status = %d", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, func(c *Config) { c.CORSOrigins = []string{"https://ok.example"} })

	rr := do(t, srv, http.MethodGet, "/api/v1/health", "", map[string]string{"Origin": "https://ok.example"})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://ok.example" {
		t.Fatalf("allowed origin header = %q", got)
	}
	rr = do(t, srv, http.MethodGet, "/api/v1/health", "", map[string]string{"Origin": "https://evil.example"})
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("disallowed origin got header %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, func(c *Config) {
		c.RateLimit = 1
		c.RateBurst = 2
	})

	header := map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}
	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, srv, http.MethodGet, "/api/v1/health", "", header).Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	// Another client has its own bucket.
	if rr := do(t, srv, http.MethodGet, "/api/v1/health", "", map[string]string{"X-Forwarded-For": "198.51.100.1"}); rr.Code != http.StatusOK {
		t.Fatalf("second client status = %d", rr.Code)
	}
}

func TestRateLimiterPrunesIdleClients(t *testing.T) {
	m := newRateLimiterMap()
	now := time.Now()
	m.now = func() time.Time { return now }

	m.allow("a", 1, 1)
	m.allow("b", 1, 1)
	if m.size() != 2 {
		t.Fatalf("expected 2 limiters, got %d", m.size())
	}

	now = now.Add(limiterIdleTTL + limiterPruneEvery + time.Second)
	m.allow("c", 1, 1)
	if m.size() != 1 {
		t.Fatalf("expected idle limiters to be pruned, got %d", m.size())
	}
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	if got := clientAddr(req); got != "192.0.2.1" {
		t.Fatalf("clientAddr = %s", got)
	}
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 ")
	if got := clientAddr(req); got != "203.0.113.9" {
		t.Fatalf("clientAddr with forwarded = %s", got)
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, http.StatusCreated, map[string]string{"status": "ok"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json content-type, got %s", got)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte(`"status":"ok"`)) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}
