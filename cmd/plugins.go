package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/khanhnv2901/nginx-audit/internal/engine"
	"github.com/khanhnv2901/nginx-audit/internal/rules"
)

var pluginsJSON bool

// pluginInfo is the listing shape of one rule.
type pluginInfo struct {
	Name       string   `json:"name"`
	Severity   string   `json:"severity"`
	Directives []string `json:"directives"`
	FullConfig bool     `json:"full_config"`
	Summary    string   `json:"summary"`
	HelpURL    string   `json:"help_url"`
}

var pluginsCmd = &cobra.Command{
	Use:     "plugins",
	Aliases: []string{"rules"},
	Short:   "List the built-in rules",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos := describeRules(rules.All())
		out := cmd.OutOrStdout()
		if pluginsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		}
		return printPlugins(out, infos)
	},
}

func describeRules(all []engine.Rule) []pluginInfo {
	infos := make([]pluginInfo, 0, len(all))
	for _, rule := range all {
		desc := rule.Descriptor()
		_, fullConfig := rule.(engine.FullConfigRule)
		infos = append(infos, pluginInfo{
			Name:       desc.Name,
			Severity:   desc.Severity.String(),
			Directives: desc.Directives,
			FullConfig: fullConfig,
			Summary:    desc.Summary,
			HelpURL:    desc.HelpURL,
		})
	}
	return infos
}

func printPlugins(out io.Writer, infos []pluginInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSEVERITY\tDIRECTIVES\tFULL CONFIG\tSUMMARY")
	for _, info := range infos {
		fullConfig := "no"
		if info.FullConfig {
			fullConfig = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			info.Name, info.Severity, strings.Join(info.Directives, ","), fullConfig, info.Summary)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d rule(s). Documentation: %s\n", len(infos), helpIndex(infos))
	return nil
}

func helpIndex(infos []pluginInfo) string {
	if len(infos) == 0 {
		return "-"
	}
	url := infos[0].HelpURL
	if i := strings.LastIndex(strings.TrimSuffix(url, "/"), "/"); i >= 0 {
		return url[:i+1]
	}
	return url
}

func init() {
	pluginsCmd.Flags().BoolVar(&pluginsJSON, "json", false, "print rules as JSON")
}
