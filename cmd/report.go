package cmd

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/khanhnv2901/nginx-audit/internal/domain/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/issue"
)

const markdownTemplatePath = "templates/report.md"

//go:embed templates/report.md
var reportTemplateFS embed.FS

var reportFormats = []string{"text", "json", "yaml", "markdown"}

var (
	markdownTemplateFuncs = template.FuncMap{
		"formatTime":    formatShortTimestamp,
		"firstLocation": firstLocation,
		"escapePipes":   escapePipes,
	}

	markdownReportTemplate = template.Must(
		template.New("report.md").Funcs(markdownTemplateFuncs).ParseFS(reportTemplateFS, markdownTemplatePath),
	)
)

// reportDocument is the serializable form of one or more runs.
type reportDocument struct {
	Runs    []runView   `json:"runs" yaml:"runs"`
	Summary summaryView `json:"summary" yaml:"summary"`
}

type runView struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	Config    string        `json:"config" yaml:"config"`
	Status    string        `json:"status" yaml:"status"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Stats     statsView     `json:"stats" yaml:"stats"`
	Findings  []findingView `json:"findings" yaml:"findings"`
	Faults    []string      `json:"faults,omitempty" yaml:"faults,omitempty"`
}

type statsView struct {
	Nodes       int     `json:"nodes" yaml:"nodes"`
	Invocations int     `json:"invocations" yaml:"invocations"`
	DurationMS  float64 `json:"duration_ms" yaml:"duration_ms"`
}

type findingView struct {
	Rule        string         `json:"rule" yaml:"rule"`
	Severity    string         `json:"severity" yaml:"severity"`
	Summary     string         `json:"summary" yaml:"summary"`
	Message     string         `json:"message" yaml:"message"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	HelpURL     string         `json:"help_url,omitempty" yaml:"help_url,omitempty"`
	Locations   []locationView `json:"locations" yaml:"locations"`
}

type locationView struct {
	Directive string `json:"directive" yaml:"directive"`
	File      string `json:"file,omitempty" yaml:"file,omitempty"`
	Line      int    `json:"line,omitempty" yaml:"line,omitempty"`
}

type summaryView struct {
	Total  int `json:"total" yaml:"total"`
	High   int `json:"high" yaml:"high"`
	Medium int `json:"medium" yaml:"medium"`
	Low    int `json:"low" yaml:"low"`
	Faults int `json:"faults" yaml:"faults"`
}

func (l locationView) String() string {
	switch {
	case l.File != "" && l.Line > 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	case l.File != "":
		return l.File
	case l.Line > 0:
		return fmt.Sprintf("<input>:%d", l.Line)
	}
	return "<unknown>"
}

func buildReportDocument(runs []*analysis.Run) reportDocument {
	doc := reportDocument{Runs: make([]runView, 0, len(runs))}
	for _, run := range runs {
		stats := run.Stats()
		view := runView{
			RunID:     run.ID(),
			Config:    run.ConfigName(),
			Status:    string(run.Status()),
			StartedAt: run.StartedAt().UTC(),
			Stats: statsView{
				Nodes:       stats.Nodes,
				Invocations: stats.Invocations,
				DurationMS:  float64(stats.Duration) / float64(time.Millisecond),
			},
			Findings: make([]findingView, 0, len(run.Findings())),
			Faults:   run.Faults(),
		}

		for _, f := range run.Findings() {
			fv := findingView{
				Rule:        f.Rule,
				Severity:    f.Severity.String(),
				Summary:     f.Summary,
				Message:     f.Message(),
				Description: f.Description,
				HelpURL:     f.HelpURL,
				Locations:   make([]locationView, 0, len(f.Nodes)),
			}
			for _, n := range f.Nodes {
				fv.Locations = append(fv.Locations, locationView(n))
			}
			view.Findings = append(view.Findings, fv)

			doc.Summary.Total++
			switch f.Severity {
			case issue.High:
				doc.Summary.High++
			case issue.Medium:
				doc.Summary.Medium++
			case issue.Low:
				doc.Summary.Low++
			}
		}
		doc.Summary.Faults += len(view.Faults)
		doc.Runs = append(doc.Runs, view)
	}
	return doc
}

// renderReport writes runs to w in the requested format.
func renderReport(w io.Writer, runs []*analysis.Run, format string) error {
	doc := buildReportDocument(runs)

	switch strings.ToLower(format) {
	case "", "text":
		return renderTextReport(w, doc)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case "markdown", "md":
		return markdownReportTemplate.Execute(w, doc)
	default:
		return &UnknownFormatError{Format: format}
	}
}

func validateReportFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "text", "json", "yaml", "yml", "markdown", "md":
		return nil
	}
	return &UnknownFormatError{Format: format}
}

func renderTextReport(w io.Writer, doc reportDocument) error {
	for i, run := range doc.Runs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s %s\n", colorBold("==>"), colorBold(run.Config), colorInfo("(run "+run.RunID+")"))

		if len(run.Findings) == 0 {
			fmt.Fprintf(w, "%s No issues found\n", colorSuccess("✓"))
		}

		for _, f := range run.Findings {
			fmt.Fprintf(w, "\n[%s] %s: %s\n", formatSeverityWithColor(severityFromString(f.Severity)), f.Rule, f.Summary)
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			if f.Message != f.Summary {
				fmt.Fprintf(tw, "    Reason:\t%s\n", f.Message)
			}
			for _, loc := range f.Locations {
				fmt.Fprintf(tw, "    Location:\t%s\t%s\n", loc, loc.Directive)
			}
			if f.HelpURL != "" {
				fmt.Fprintf(tw, "    Help:\t%s\n", f.HelpURL)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
		}

		for _, fault := range run.Faults {
			fmt.Fprintf(w, "%s %s\n", colorWarn("!"), fault)
		}
	}

	s := doc.Summary
	fmt.Fprintf(w, "\nSummary: %d issue(s) (HIGH: %d, MEDIUM: %d, LOW: %d)\n", s.Total, s.High, s.Medium, s.Low)
	if s.Faults > 0 {
		fmt.Fprintf(w, "%s %d rule fault(s); results may be incomplete\n", colorWarn("!"), s.Faults)
	}
	return nil
}

func severityFromString(s string) issue.Severity {
	sev, err := issue.ParseSeverity(s)
	if err != nil {
		return issue.Unspecified
	}
	return sev
}

func formatShortTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

func firstLocation(f findingView) string {
	if len(f.Locations) == 0 {
		return "-"
	}
	return fmt.Sprintf("`%s` (%s)", f.Locations[0].Directive, f.Locations[0])
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
