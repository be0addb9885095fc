package cmd

import (
	"fmt"
	"strings"

	"github.com/khanhnv2901/nginx-audit/internal/issue"
)

// UnknownFormatError indicates an unsupported report format.
type UnknownFormatError struct {
	Format string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown report format %q (supported: %s)", e.Format, strings.Join(reportFormats, ", "))
}

// IssuesFoundError signals that findings at or above the --fail-on level were reported.
type IssuesFoundError struct {
	Threshold issue.Severity
	Count     int
}

func (e *IssuesFoundError) Error() string {
	if e.Count == 1 {
		return fmt.Sprintf("1 issue at or above %s", e.Threshold)
	}
	return fmt.Sprintf("%d issues at or above %s", e.Count, e.Threshold)
}
