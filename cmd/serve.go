package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/khanhnv2901/nginx-audit/internal/api"
)

type serveOptions struct {
	Addr            string
	AuthToken       string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RateLimit       int
	RateBurst       int
}

var serveOpts = serveOptions{
	Addr:            "127.0.0.1:8080",
	ShutdownTimeout: 30 * time.Second,
	RateLimit:       10,
	RateBurst:       20,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the analyzer as an HTTP API service",
	Long: `Serve the analyzer over HTTP.

  POST /api/v1/analyze          analyze the configuration in the request body
  GET  /api/v1/runs             list stored runs
  GET  /api/v1/runs/{id}        show a stored run
  GET  /api/v1/runs/{id}/verify check a stored run against its digest
  GET  /api/v1/rules            list the enabled rules
  GET  /api/v1/health           health check
  GET  /metrics                 Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		appCtx := getAppContext(cmd)

		handler, err := newAPIServer(appCtx, serveOpts)
		if err != nil {
			return err
		}

		httpServer := &http.Server{
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		ln, err := net.Listen("tcp", serveOpts.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", serveOpts.Addr, err)
		}

		serverErrors := make(chan error, 1)
		go func() {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s API server listening on %s (results dir: %s)\n", colorInfo("→"), ln.Addr(), appCtx.ResultsDir)
			fmt.Fprintf(out, "%s Press Ctrl+C to gracefully shutdown\n", colorInfo("→"))
			serverErrors <- httpServer.Serve(ln)
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
		case sig := <-shutdown:
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s Received signal %v, initiating graceful shutdown...\n", colorInfo("→"), sig)
			if err := shutdownServer(httpServer, serveOpts.ShutdownTimeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Server shutdown complete\n", colorInfo("✓"))
		case <-cmd.Context().Done():
			return shutdownServer(httpServer, serveOpts.ShutdownTimeout)
		}

		return nil
	},
}

func shutdownServer(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		if closeErr := srv.Close(); closeErr != nil {
			return fmt.Errorf("failed to gracefully shutdown server: %w (close error: %v)", err, closeErr)
		}
		return fmt.Errorf("failed to gracefully shutdown server: %w", err)
	}
	return nil
}

// newAPIServer wires the HTTP API over the analysis service selected by the
// analyze configuration (rules, concurrency).
func newAPIServer(appCtx *AppContext, opts serveOptions) (http.Handler, error) {
	container, err := newContainer(appCtx, appCtx.Config.Analyze)
	if err != nil {
		return nil, err
	}

	infos := describeRules(container.Registry.Rules())
	ruleInfos := make([]api.RuleInfo, 0, len(infos))
	for _, info := range infos {
		ruleInfos = append(ruleInfos, api.RuleInfo(info))
	}

	cfg := api.Config{
		Analysis:    container.AnalysisService,
		Health:      &healthAPIService{resultsDir: appCtx.ResultsDir},
		Rules:       ruleInfos,
		AuthToken:   opts.AuthToken,
		Logger:      appCtx.zapLogger(),
		CORSOrigins: opts.CORSOrigins,
		RateLimit:   opts.RateLimit,
		RateBurst:   opts.RateBurst,
	}
	if appCtx.Metrics != nil {
		cfg.Metrics = promhttp.HandlerFor(appCtx.Metrics, promhttp.HandlerOpts{})
	}
	return api.NewServer(cfg), nil
}

// healthAPIService reports healthy while the results directory is writable.
type healthAPIService struct {
	resultsDir string
}

func (s *healthAPIService) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	probe, err := os.CreateTemp(s.resultsDir, ".health-*")
	if err != nil {
		return fmt.Errorf("results directory not writable: %w", err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(filepath.Clean(name))
}

func init() {
	serveCmd.Flags().StringVar(&serveOpts.Addr, "addr", serveOpts.Addr, "Address for the API server")
	serveCmd.Flags().StringVar(&serveOpts.AuthToken, "auth-token", serveOpts.AuthToken, "Optional shared secret for API requests (X-Auth-Token)")
	serveCmd.Flags().DurationVar(&serveOpts.ShutdownTimeout, "shutdown-timeout", serveOpts.ShutdownTimeout, "Graceful shutdown timeout")
	serveCmd.Flags().StringSliceVar(&serveOpts.CORSOrigins, "cors-origins", serveOpts.CORSOrigins, "Allowed CORS origins (empty = allow all)")
	serveCmd.Flags().IntVar(&serveOpts.RateLimit, "rate-limit", serveOpts.RateLimit, "Rate limit per IP (requests/second, 0 = disabled)")
	serveCmd.Flags().IntVar(&serveOpts.RateBurst, "rate-burst", serveOpts.RateBurst, "Rate limit burst size")
	serveCmd.Flags().IntVar(&cliConfig.Analyze.Concurrency, "concurrency", cliConfig.Analyze.Concurrency, "rule workers per configuration")
	serveCmd.Flags().StringSliceVar(&cliConfig.Analyze.Disable, "disable", cliConfig.Analyze.Disable, "skip these rules (comma-separated)")
}
