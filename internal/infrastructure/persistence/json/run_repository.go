package json

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/khanhnv2901/nginx-audit/internal/domain/analysis"
	"github.com/khanhnv2901/nginx-audit/internal/issue"
	consts "github.com/khanhnv2901/nginx-audit/internal/shared/constants"
	sharedErrors "github.com/khanhnv2901/nginx-audit/internal/shared/errors"
	"github.com/khanhnv2901/nginx-audit/internal/shared/security"
)

const (
	runFileExt    = ".json"
	hashAlgorithm = "sha256"
)

// runDTO is the data transfer object for JSON serialization
type runDTO struct {
	ID          string       `json:"id"`
	ConfigName  string       `json:"config_name"`
	StartedAt   string       `json:"started_at"`
	CompletedAt string       `json:"completed_at,omitempty"`
	Status      string       `json:"status"`
	Findings    []findingDTO `json:"findings"`
	Faults      []string     `json:"faults,omitempty"`
	Stats       statsDTO     `json:"stats"`
}

type statsDTO struct {
	Nodes       int     `json:"nodes"`
	Invocations int     `json:"invocations"`
	DurationMS  float64 `json:"duration_ms"`
}

type findingDTO struct {
	Rule        string         `json:"rule"`
	Severity    issue.Severity `json:"severity"`
	Summary     string         `json:"summary"`
	Description string         `json:"description,omitempty"`
	HelpURL     string         `json:"help_url,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Nodes       []nodeRefDTO   `json:"nodes"`
}

type nodeRefDTO struct {
	Directive string `json:"directive"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// RunRepository implements the analysis.Repository interface using JSON
// files, one per run, each with a sha256 sidecar.
type RunRepository struct {
	runsDir string
	mu      sync.RWMutex
}

// NewRunRepository creates a new JSON-based run repository under resultsDir.
func NewRunRepository(resultsDir string) (*RunRepository, error) {
	if resultsDir == "" {
		return nil, fmt.Errorf("results directory cannot be empty")
	}

	runsDir, err := security.ResolveWithin(resultsDir, consts.RunsDirName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve runs directory: %w", err)
	}
	if err := os.MkdirAll(runsDir, consts.DefaultDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create runs directory: %w", err)
	}

	return &RunRepository{runsDir: runsDir}, nil
}

func (r *RunRepository) runPath(id string) (string, error) {
	if err := security.CheckName(id); err != nil {
		return "", fmt.Errorf("%w: %v", sharedErrors.ErrInvalidRunID, err)
	}
	return security.ResolveWithin(r.runsDir, id+runFileExt)
}

// Save persists a run and records its digest on the run.
func (r *RunRepository) Save(ctx context.Context, run *analysis.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	filePath, err := r.runPath(run.ID())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(r.toDTO(run), "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", sharedErrors.ErrSerializationFailed, err)
	}

	if err := os.WriteFile(filePath, data, consts.DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	sum := digest(data)
	hashContent := fmt.Sprintf("%s  %s\n", sum, filepath.Base(filePath))
	if err := os.WriteFile(filePath+"."+hashAlgorithm, []byte(hashContent), consts.DefaultFilePerm); err != nil {
		return fmt.Errorf("failed to save run hash: %w", err)
	}

	return run.SetHash(sum, hashAlgorithm)
}

// FindByID retrieves a run by its ID
func (r *RunRepository) FindByID(ctx context.Context, id string) (*analysis.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filePath, err := r.runPath(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", sharedErrors.ErrRunNotFound, id)
	}

	return r.loadFromFile(filePath)
}

// FindAll retrieves all runs ordered by start time. Unreadable files are
// skipped.
func (r *RunRepository) FindAll(ctx context.Context) ([]*analysis.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.runsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	runs := make([]*analysis.Run, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), runFileExt) {
			continue
		}

		run, err := r.loadFromFile(filepath.Join(r.runsDir, entry.Name()))
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt().Before(runs[j].StartedAt())
	})
	return runs, nil
}

// Delete removes a run and its digest.
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	filePath, err := r.runPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", sharedErrors.ErrRunNotFound, id)
		}
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if err := os.Remove(filePath + "." + hashAlgorithm); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete run hash: %w", err)
	}
	return nil
}

// VerifyIntegrity recomputes the digest of a stored run and compares it with
// the recorded one.
func (r *RunRepository) VerifyIntegrity(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filePath, err := r.runPath(id)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", sharedErrors.ErrRunNotFound, id)
		}
		return false, fmt.Errorf("failed to read run: %w", err)
	}

	expected, err := readDigest(filePath)
	if err != nil {
		return false, err
	}

	return expected == digest(data), nil
}

// Helper methods

func digest(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

func readDigest(filePath string) (string, error) {
	content, err := os.ReadFile(filePath + "." + hashAlgorithm)
	if err != nil {
		return "", fmt.Errorf("%w: no hash file for %s", sharedErrors.ErrIntegrityFailed, filepath.Base(filePath))
	}
	fields := strings.Fields(string(content))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: empty hash file for %s", sharedErrors.ErrIntegrityFailed, filepath.Base(filePath))
	}
	return fields[0], nil
}

func (r *RunRepository) loadFromFile(filePath string) (*analysis.Run, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}

	var dto runDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("%w: %v", sharedErrors.ErrDeserializationFailed, err)
	}

	var metadata analysis.Metadata
	if sum, err := readDigest(filePath); err == nil {
		metadata = analysis.Metadata{Hash: sum, HashAlgorithm: hashAlgorithm}
	}

	return r.fromDTO(dto, metadata)
}

func (r *RunRepository) toDTO(run *analysis.Run) runDTO {
	stats := run.Stats()
	dto := runDTO{
		ID:         run.ID(),
		ConfigName: run.ConfigName(),
		StartedAt:  run.StartedAt().Format(time.RFC3339Nano),
		Status:     string(run.Status()),
		Findings:   make([]findingDTO, 0),
		Faults:     run.Faults(),
		Stats: statsDTO{
			Nodes:       stats.Nodes,
			Invocations: stats.Invocations,
			DurationMS:  float64(stats.Duration) / float64(time.Millisecond),
		},
	}

	if !run.CompletedAt().IsZero() {
		dto.CompletedAt = run.CompletedAt().Format(time.RFC3339Nano)
	}

	for _, f := range run.Findings() {
		fd := findingDTO{
			Rule:        f.Rule,
			Severity:    f.Severity,
			Summary:     f.Summary,
			Description: f.Description,
			HelpURL:     f.HelpURL,
			Reason:      f.Reason,
			Nodes:       make([]nodeRefDTO, 0, len(f.Nodes)),
		}
		for _, n := range f.Nodes {
			fd.Nodes = append(fd.Nodes, nodeRefDTO(n))
		}
		dto.Findings = append(dto.Findings, fd)
	}

	return dto
}

func (r *RunRepository) fromDTO(dto runDTO, metadata analysis.Metadata) (*analysis.Run, error) {
	startedAt, err := time.Parse(time.RFC3339Nano, dto.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started at time: %w", err)
	}

	var completedAt time.Time
	if dto.CompletedAt != "" {
		completedAt, err = time.Parse(time.RFC3339Nano, dto.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed at time: %w", err)
		}
	}

	findings := make([]analysis.Finding, 0, len(dto.Findings))
	for _, fd := range dto.Findings {
		f := analysis.Finding{
			Rule:        fd.Rule,
			Summary:     fd.Summary,
			Description: fd.Description,
			HelpURL:     fd.HelpURL,
			Severity:    fd.Severity,
			Reason:      fd.Reason,
		}
		for _, n := range fd.Nodes {
			f.Nodes = append(f.Nodes, analysis.NodeRef(n))
		}
		findings = append(findings, f)
	}

	stats := analysis.Stats{
		Nodes:       dto.Stats.Nodes,
		Invocations: dto.Stats.Invocations,
		Duration:    time.Duration(dto.Stats.DurationMS * float64(time.Millisecond)),
	}

	return analysis.Reconstruct(
		dto.ID,
		dto.ConfigName,
		startedAt,
		completedAt,
		analysis.RunStatus(dto.Status),
		findings,
		dto.Faults,
		stats,
		metadata,
	), nil
}
