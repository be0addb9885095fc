package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/nginx-audit/internal/rules"
)

// Version information (injected at build time via -ldflags)
// These default values indicate a development build
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	versionVerbose bool
	versionJSON    bool
)

type buildInfo struct {
	Version   string   `json:"version"`
	GitCommit string   `json:"git_commit"`
	BuildDate string   `json:"build_date"`
	GoVersion string   `json:"go_version"`
	Platform  string   `json:"platform"`
	Rules     []string `json:"rules"`
}

// currentBuildInfo falls back to the VCS stamp of `go build` when the commit
// was not injected.
func currentBuildInfo() buildInfo {
	info := buildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.GitCommit == "unknown" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && s.Value != "" {
					info.GitCommit = s.Value
				}
			}
		}
	}
	for _, rule := range rules.All() {
		info.Rules = append(info.Rules, rule.Descriptor().Name)
	}
	return info
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Display the nginx-audit version and the rule set compiled into this binary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd.OutOrStdout(), currentBuildInfo(), versionVerbose, versionJSON)
	},
}

func printVersion(out io.Writer, info buildInfo, verbose, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	if !verbose {
		_, err := fmt.Fprintf(out, "nginx-audit version %s (%d rules)\n", info.Version, len(info.Rules))
		return err
	}

	_, err := fmt.Fprintf(out, `nginx-audit Version Information:
  Version:    %s
  Git Commit: %s
  Build Date: %s
  Go Version: %s
  OS/Arch:    %s
  Rules:      %s
`, info.Version, info.GitCommit, info.BuildDate, info.GoVersion, info.Platform, strings.Join(info.Rules, ", "))
	return err
}

func init() {
	versionCmd.Flags().BoolVarP(&versionVerbose, "verbose", "v", false, "Show detailed version information")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version information as JSON")
}
