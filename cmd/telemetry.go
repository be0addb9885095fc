package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/khanhnv2901/nginx-audit/internal/domain/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/issue"
	consts "github.com/khanhnv2901/nginx-audit/internal/shared/constants"
)

type telemetryRecord struct {
	Timestamp       time.Time `json:"timestamp"`
	Command         string    `json:"command"`
	RunIDs          []string  `json:"run_ids"`
	FileCount       int       `json:"file_count"`
	ErrorCount      int       `json:"error_count"`
	IssueCount      int       `json:"issue_count"`
	HighCount       int       `json:"high_count"`
	FaultCount      int       `json:"fault_count"`
	DurationSeconds float64   `json:"duration_seconds"`
	AvgDurationFile float64   `json:"avg_duration_per_file"`
}

func recordTelemetry(appCtx *AppContext, command string, runs []*analysis.Run, errorCount int, duration time.Duration) error {
	total := len(runs) + errorCount

	record := telemetryRecord{
		Timestamp:       time.Now().UTC(),
		Command:         command,
		RunIDs:          make([]string, 0, len(runs)),
		FileCount:       total,
		ErrorCount:      errorCount,
		DurationSeconds: duration.Seconds(),
	}
	if total > 0 {
		record.AvgDurationFile = duration.Seconds() / float64(total)
	}

	for _, run := range runs {
		record.RunIDs = append(record.RunIDs, run.ID())
		record.IssueCount += len(run.Findings())
		record.HighCount += run.CountBySeverity()[issue.High]
		record.FaultCount += len(run.Faults())
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	telemetryPath := filepath.Join(appCtx.ResultsDir, consts.TelemetryFilename)
	f, err := os.OpenFile(telemetryPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, consts.DefaultFilePerm)
	if err != nil {
		return fmt.Errorf("open telemetry file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write telemetry: %w", err)
	}

	return nil
}
