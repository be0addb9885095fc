package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/khanhnv2901/nginx-audit/internal/application"
	analysisapp "github.com/khanhnv2901/nginx-audit/internal/application/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/domain/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/engine"
	"github.com/khanhnv2901/nginx-audit/internal/issue"
	"github.com/khanhnv2901/nginx-audit/internal/rules"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <config>...",
	Short: "Analyze nginx configuration files for security misconfigurations",
	Long: `Parse each nginx configuration file and run the enabled rules over it.

Findings are printed in the selected format. With --fail-on the command exits
non-zero when a finding at or above that severity is reported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		appCtx := getAppContext(cmd)
		runtimeCfg := appCtx.Config.Analyze
		startTime := time.Now()

		// Setup signal handling
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		go func() {
			select {
			case sig := <-sigCh:
				fmt.Fprintf(os.Stderr, "\n%s Received %s, stopping...\n", colorWarn("!"), sig.String())
				cancel()
			case <-ctx.Done():
			}
		}()

		opts, err := parseAnalyzeOptions(runtimeCfg)
		if err != nil {
			return err
		}

		container, err := newContainer(appCtx, runtimeCfg)
		if err != nil {
			return err
		}
		svc := container.AnalysisService

		runner := &analysisapp.Runner{
			Service:     svc,
			Concurrency: runtimeCfg.FileConcurrency,
			RateLimit:   runtimeCfg.RateLimit,
		}

		var progress *progressPrinter
		if runtimeCfg.ProgressEnabled {
			progress = newProgressPrinter(cmd.ErrOrStderr(), len(args), "analyze")
			progress.Start()
		}

		results := runner.AnalyzeFiles(ctx, args, func(res analysisapp.FileResult) {
			if progress == nil {
				return
			}
			issues := 0
			if res.Run != nil {
				issues = len(res.Run.Findings())
			}
			progress.Increment(res.Err == nil, issues, res.Duration.Seconds())
		})

		if progress != nil {
			progress.Stop()
		}

		runs := make([]*analysis.Run, 0, len(results))
		var failed []error
		for _, res := range results {
			if res.Err != nil {
				appCtx.Logger.Errorw("analysis_failed", "config", res.Path, "error", res.Err)
				failed = append(failed, fmt.Errorf("%s: %w", res.Path, res.Err))
				continue
			}
			runs = append(runs, res.Run)
		}

		if runtimeCfg.Save {
			for _, run := range runs {
				if err := svc.Save(ctx, run); err != nil {
					return err
				}
				appCtx.Logger.Infow("run_saved", "run_id", run.ID(), "hash", run.Metadata().Hash)
			}
		}

		if runtimeCfg.TelemetryEnabled {
			if err := recordTelemetry(appCtx, "analyze", runs, len(failed), time.Since(startTime)); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to record telemetry: %v\n", err)
			}
		}

		if runtimeCfg.MetricsFile != "" {
			if err := writeMetricsFile(appCtx.Metrics, runtimeCfg.MetricsFile); err != nil {
				return err
			}
		}

		visible := make([]*analysis.Run, 0, len(runs))
		for _, run := range runs {
			visible = append(visible, run.FilterMinSeverity(opts.minSeverity))
		}
		if err := renderReport(cmd.OutOrStdout(), visible, opts.format); err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}

		if len(failed) > 0 {
			return errors.Join(failed...)
		}
		return checkFailOn(runs, opts.failOn)
	},
}

type analyzeOptions struct {
	format      string
	minSeverity issue.Severity
	failOn      issue.Severity
}

func parseAnalyzeOptions(cfg AnalyzeRuntimeConfig) (analyzeOptions, error) {
	opts := analyzeOptions{format: strings.ToLower(cfg.Format)}
	if err := validateReportFormat(opts.format); err != nil {
		return opts, err
	}

	var err error
	if opts.minSeverity, err = issue.ParseSeverity(cfg.MinSeverity); err != nil {
		return opts, fmt.Errorf("invalid --severity: %w", err)
	}
	if opts.failOn, err = issue.ParseSeverity(cfg.FailOn); err != nil {
		return opts, fmt.Errorf("invalid --fail-on: %w", err)
	}
	return opts, nil
}

// newContainer wires the analysis service for the rules selected by
// --enable/--disable.
func newContainer(appCtx *AppContext, cfg AnalyzeRuntimeConfig) (*application.Container, error) {
	builtin, err := rules.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to register rules: %w", err)
	}
	registry, err := builtin.Select(cfg.Enable, cfg.Disable)
	if err != nil {
		return nil, err
	}

	container, err := application.NewContainer(
		appCtx.ResultsDir,
		registry,
		appCtx.zapLogger(),
		engine.WithConcurrency(cfg.Concurrency),
		engine.WithMetrics(appCtx.EngineMetrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return container, nil
}

// checkFailOn returns an IssuesFoundError when any run has findings at or
// above threshold. An unspecified threshold never fails.
func checkFailOn(runs []*analysis.Run, threshold issue.Severity) error {
	if threshold == issue.Unspecified {
		return nil
	}
	count := 0
	for _, run := range runs {
		for _, f := range run.Findings() {
			if f.Severity.AtLeast(threshold) {
				count++
			}
		}
	}
	if count == 0 {
		return nil
	}
	return &IssuesFoundError{Threshold: threshold, Count: count}
}

func writeMetricsFile(reg *prometheus.Registry, path string) error {
	if reg == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

func addAnalyzeFlags(cmd *cobra.Command) {
	cfg := &cliConfig.Analyze
	cmd.Flags().StringVarP(&cfg.Format, "format", "f", cfg.Format, "report format: "+strings.Join(reportFormats, ", "))
	cmd.Flags().StringVar(&cfg.MinSeverity, "severity", cfg.MinSeverity, "only report issues at or above this severity (low, medium, high)")
	cmd.Flags().StringVar(&cfg.FailOn, "fail-on", cfg.FailOn, "exit non-zero when an issue at or above this severity is found")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "rule workers per configuration")
	cmd.Flags().StringSliceVar(&cfg.Enable, "enable", cfg.Enable, "only run these rules (comma-separated)")
	cmd.Flags().StringSliceVar(&cfg.Disable, "disable", cfg.Disable, "skip these rules (comma-separated)")
	cmd.Flags().StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "write Prometheus metrics to this file after the run")
}

func init() {
	addAnalyzeFlags(analyzeCmd)
	cfg := &cliConfig.Analyze
	analyzeCmd.Flags().IntVar(&cfg.FileConcurrency, "jobs", cfg.FileConcurrency, "configuration files analyzed at once")
	analyzeCmd.Flags().IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "files started per second (0 = unlimited)")
	analyzeCmd.Flags().BoolVar(&cfg.Save, "save", cfg.Save, "store runs in the results directory")
	analyzeCmd.Flags().BoolVar(&cfg.TelemetryEnabled, "telemetry", cfg.TelemetryEnabled, "append run telemetry to telemetry.jsonl")
	analyzeCmd.Flags().BoolVar(&cfg.ProgressEnabled, "progress", cfg.ProgressEnabled, "show progress on stderr")
}
