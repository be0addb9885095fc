package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/nginx-audit/internal/application"
	"github.com/khanhnv2901/nginx-audit/internal/domain/analysis"
)

var runsShowFormat string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect analysis runs stored with --save",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := historyContainer(cmd)
		if err != nil {
			return err
		}
		runs, err := container.AnalysisService.ListRuns(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No stored runs.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCONFIG\tSTATUS\tISSUES\tHIGHEST\tSTARTED")
		for _, run := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				run.ID(),
				run.ConfigName(),
				run.Status(),
				len(run.Findings()),
				run.MaxSeverity(),
				run.StartedAt().Local().Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print the report of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(runsShowFormat)
		if err := validateReportFormat(format); err != nil {
			return err
		}
		container, err := historyContainer(cmd)
		if err != nil {
			return err
		}
		run, err := container.AnalysisService.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderReport(cmd.OutOrStdout(), []*analysis.Run{run}, format)
	},
}

var runsVerifyCmd = &cobra.Command{
	Use:   "verify <run-id>",
	Short: "Check a stored run against its SHA256 digest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := historyContainer(cmd)
		if err != nil {
			return err
		}
		ok, err := container.AnalysisService.VerifyRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("run %s does not match its recorded digest", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Run %s verified\n", colorSuccess("✓"), args[0])
		return nil
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Remove a stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := historyContainer(cmd)
		if err != nil {
			return err
		}
		if err := container.AnalysisService.DeleteRun(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Run %s deleted\n", colorSuccess("✓"), args[0])
		return nil
	},
}

func historyContainer(cmd *cobra.Command) (*application.Container, error) {
	appCtx := getAppContext(cmd)
	container, err := application.NewContainer(appCtx.ResultsDir, nil, appCtx.zapLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return container, nil
}

func init() {
	runsShowCmd.Flags().StringVarP(&runsShowFormat, "format", "f", defaultFormat, "report format: "+strings.Join(reportFormats, ", "))

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsVerifyCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}
