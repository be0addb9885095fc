package cmd

import (
	"github.com/fatih/color"

	"github.com/khanhnv2901/nginx-audit/internal/issue"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
)

func formatSeverityWithColor(s issue.Severity) string {
	switch s {
	case issue.High:
		return colorError(s.String())
	case issue.Medium:
		return colorWarn(s.String())
	case issue.Low:
		return colorInfo(s.String())
	default:
		return s.String()
	}
}

func formatStatusWithColor(status string) string {
	switch status {
	case "completed":
		return colorSuccess(status)
	case "failed":
		return colorError(status)
	default:
		return status
	}
}
