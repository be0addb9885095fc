package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	analysisapp "github.com/khanhnv2901/nginx-audit/internal/application/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/domain/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/infrastructure/watch"
)

var (
	watchDebounce    time.Duration
	watchMinInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <config>",
	Short: "Re-analyze a configuration file whenever it changes",
	Long: `Analyze an nginx configuration file, then keep watching it and print a
fresh report every time it is saved. Press Ctrl+C to stop.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		appCtx := getAppContext(cmd)
		runtimeCfg := appCtx.Config.Analyze
		path := args[0]

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

		out := cmd.OutOrStdout()
		analyzeOnce(ctx, out, container.AnalysisService, path, opts)

		watcher, err := watch.New(watch.Config{
			Paths:       []string{path},
			Debounce:    watchDebounce,
			MinInterval: watchMinInterval,
		}, appCtx.zapLogger())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%s Watching %s for changes\n", colorInfo("→"), path)
		return watcher.Run(ctx, func(ctx context.Context, _ string) {
			analyzeOnce(ctx, out, container.AnalysisService, path, opts)
		})
	},
}

// analyzeOnce runs one analysis and prints it. Failures are reported but do
// not end the watch, so a half-saved file does not stop the session.
func analyzeOnce(ctx context.Context, out io.Writer, svc *analysisapp.Service, path string, opts analyzeOptions) {
	fmt.Fprintf(out, "%s %s\n", colorBold("==>"), time.Now().Format(time.RFC3339))

	run, err := svc.AnalyzeFile(ctx, path)
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", colorError("✗"), err)
		return
	}
	if err := renderReport(out, []*analysis.Run{run.FilterMinSeverity(opts.minSeverity)}, opts.format); err != nil {
		fmt.Fprintf(out, "%s failed to render report: %v\n", colorError("✗"), err)
	}
}

func init() {
	addAnalyzeFlags(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "quiet period after a change before re-analyzing (default 300ms)")
	watchCmd.Flags().DurationVar(&watchMinInterval, "min-interval", 0, "minimum time between two analyses (default 2s)")
}
