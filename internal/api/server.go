// Package api exposes the analyzer over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/khanhnv2901/nginx-audit/internal/api/middleware"
	"github.com/khanhnv2901/nginx-audit/internal/domain/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/issue"
	sharedErrors "github.com/khanhnv2901/nginx-audit/internal/shared/errors"
)

// maxConfigBytes caps the size of an uploaded configuration.
const maxConfigBytes = 1 << 20

// AnalysisService is the subset of the analysis service the API needs.
type AnalysisService interface {
	AnalyzeReader(ctx context.Context, name string, r io.Reader) (*analysis.Run, error)
	Save(ctx context.Context, run *analysis.Run) error
	GetRun(ctx context.Context, id string) (*analysis.Run, error)
	ListRuns(ctx context.Context) ([]*analysis.Run, error)
	VerifyRun(ctx context.Context, id string) (bool, error)
}

type HealthService interface {
	Check(ctx context.Context) error
}

type Config struct {
	Analysis AnalysisService
	Health   HealthService
	// Rules is served as-is from /api/v1/rules.
	Rules []RuleInfo
	// Metrics is mounted at /metrics when set.
	Metrics     http.Handler
	AuthToken   string
	Logger      *zap.Logger
	CORSOrigins []string // Allowed CORS origins (empty = allow all)
	RateLimit   int      // Requests per second per IP (0 = disabled)
	RateBurst   int      // Burst size for rate limiter
}

type Server struct {
	cfg      Config
	mux      *http.ServeMux
	limiters *rateLimiterMap
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	srv := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		limiters: newRateLimiterMap(),
	}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// RequestID -> Logging -> RateLimit -> CORS -> Auth -> Handler
	handler := middleware.RequestID(s.withLogging(s.withRateLimit(s.withCORS(s.mux))))
	handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.Handle("/api/v1/health", s.withAuth(http.HandlerFunc(s.handleHealth)))
	s.mux.Handle("/api/v1/rules", s.withAuth(http.HandlerFunc(s.handleRules)))
	s.mux.Handle("/api/v1/analyze", s.withAuth(http.HandlerFunc(s.handleAnalyze)))
	s.mux.Handle("/api/v1/runs", s.withAuth(http.HandlerFunc(s.handleRuns)))
	s.mux.Handle("/api/v1/runs/", s.withAuth(http.HandlerFunc(s.handleRunByID)))
	if s.cfg.Metrics != nil {
		s.mux.Handle("/metrics", s.withAuth(s.cfg.Metrics))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Check(r.Context()); err != nil {
			s.writeError(w, r, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	rules := s.cfg.Rules
	if rules == nil {
		rules = []RuleInfo{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// handleAnalyze analyzes the configuration text in the request body.
//
// Query parameters: name (used in locations, default "nginx.conf"), severity
// (hide findings below it) and save (store the run).
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}

	q := r.URL.Query()
	name := strings.TrimSpace(q.Get("name"))
	if name == "" {
		name = "nginx.conf"
	}
	floor, err := issue.ParseSeverity(q.Get("severity"))
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	save := false
	if v := q.Get("save"); v != "" {
		if save, err = strconv.ParseBool(v); err != nil {
			s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid save parameter: %w", err))
			return
		}
	}

	body := http.MaxBytesReader(w, r.Body, maxConfigBytes)
	run, err := s.cfg.Analysis.AnalyzeReader(r.Context(), name, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			s.writeError(w, r, http.StatusRequestEntityTooLarge, errors.New("configuration too large"))
		case errors.Is(err, sharedErrors.ErrSyntax):
			s.writeError(w, r, http.StatusUnprocessableEntity, err)
		default:
			s.writeError(w, r, http.StatusInternalServerError, err)
		}
		return
	}

	if save {
		if err := s.cfg.Analysis.Save(r.Context(), run); err != nil {
			s.writeError(w, r, http.StatusInternalServerError, err)
			return
		}
	}

	s.requestLogger(r).Info("config_analyzed",
		zap.String("run_id", run.ID()),
		zap.Int("issues", len(run.Findings())),
		zap.Bool("saved", save),
	)
	writeJSON(w, http.StatusOK, newRunResponse(run.FilterMinSeverity(floor)))
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	runs, err := s.cfg.Analysis.ListRuns(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	resp := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, newRunSummary(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRunByID serves /api/v1/runs/{id} and /api/v1/runs/{id}/verify.
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, r, http.StatusNotFound, errors.New("run ID required"))
		return
	}

	switch action {
	case "":
		run, err := s.cfg.Analysis.GetRun(r.Context(), id)
		if err != nil {
			s.writeError(w, r, runErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, newRunResponse(run))
	case "verify":
		ok, err := s.cfg.Analysis.VerifyRun(r.Context(), id)
		if err != nil {
			s.writeError(w, r, runErrorStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"run_id": id, "verified": ok})
	default:
		s.writeError(w, r, http.StatusNotFound, errors.New("not found"))
	}
}

func runErrorStatus(err error) int {
	switch {
	case errors.Is(err, sharedErrors.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, sharedErrors.ErrInvalidRunID):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}
