// Package testutil provides a throwaway environment for CLI tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	consts "github.com/khanhnv2901/nginx-audit/internal/shared/constants"
	"github.com/khanhnv2901/nginx-audit/internal/shared/security"
)

// DataDirEnvVar is the variable the CLI reads to override its data directory.
const DataDirEnvVar = "NGINX_AUDIT_DATA_DIR"

// TestEnv holds test environment configuration and cleanup functions.
type TestEnv struct {
	TmpDir       string
	DataDir      string
	ResultsDir   string
	cleanupFuncs []func()
	t            *testing.T
}

// NewTestEnv creates a new test environment with automatic cleanup. The data
// directory override is set for the duration of the test, so commands never
// touch the real user data directory.
//
//	env := testutil.NewTestEnv(t)
//	defer env.Cleanup()
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()
	env := &TestEnv{
		TmpDir:       tmpDir,
		DataDir:      filepath.Join(tmpDir, "data"),
		t:            t,
		cleanupFuncs: []func(){},
	}
	env.ResultsDir = filepath.Join(env.DataDir, "results")

	if err := os.MkdirAll(env.ResultsDir, consts.DefaultDirPerm); err != nil {
		t.Fatalf("Failed to create test results directory: %v", err)
	}
	t.Setenv(DataDirEnvVar, env.DataDir)

	return env
}

// AddCleanup adds a cleanup function to be called when Cleanup() is called.
// Cleanup functions are called in reverse order (LIFO).
func (e *TestEnv) AddCleanup(fn func()) {
	e.cleanupFuncs = append([]func(){fn}, e.cleanupFuncs...)
}

// Cleanup runs all registered cleanup functions.
func (e *TestEnv) Cleanup() {
	for _, fn := range e.cleanupFuncs {
		fn()
	}
}

// RunsPath returns the directory holding runs stored with --save.
func (e *TestEnv) RunsPath() string {
	return filepath.Join(e.ResultsDir, consts.RunsDirName)
}

// WriteConfig writes an nginx configuration under the temp dir and returns
// its path.
func (e *TestEnv) WriteConfig(name, text string) string {
	e.t.Helper()
	return e.CreateFile(name, []byte(text))
}

// CreateFile creates a file in the test environment with the given content.
// The file path is relative to the test's temporary directory.
func (e *TestEnv) CreateFile(relativePath string, content []byte) string {
	e.t.Helper()

	fullPath := resolveTmpPath(e.TmpDir, relativePath, e.t)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, consts.DefaultDirPerm); err != nil {
		e.t.Fatalf("Failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, content, consts.DefaultFilePerm); err != nil {
		e.t.Fatalf("Failed to create file %s: %v", fullPath, err)
	}

	return fullPath
}

// ReadFile reads a file from the test environment.
// The file path is relative to the test's temporary directory.
func (e *TestEnv) ReadFile(relativePath string) []byte {
	e.t.Helper()

	fullPath := resolveTmpPath(e.TmpDir, relativePath, e.t)
	content, err := os.ReadFile(fullPath) // #nosec G304 -- path resolved inside the test temp dir.
	if err != nil {
		e.t.Fatalf("Failed to read file %s: %v", fullPath, err)
	}

	return content
}

// FileExists checks if a file exists in the test environment.
func (e *TestEnv) FileExists(relativePath string) bool {
	fullPath := resolveTmpPath(e.TmpDir, relativePath, e.t)
	_, err := os.Stat(fullPath)
	return err == nil
}

// MustNotExist fails the test if the file exists.
func (e *TestEnv) MustNotExist(relativePath string) {
	e.t.Helper()
	if e.FileExists(relativePath) {
		e.t.Fatalf("File %s should not exist but does", relativePath)
	}
}

// MustExist fails the test if the file does not exist.
func (e *TestEnv) MustExist(relativePath string) {
	e.t.Helper()
	if !e.FileExists(relativePath) {
		e.t.Fatalf("File %s should exist but does not", relativePath)
	}
}

func resolveTmpPath(baseDir, relativePath string, t *testing.T) string {
	t.Helper()
	path, err := security.ResolveWithin(baseDir, relativePath)
	if err != nil {
		t.Fatalf("invalid test path %s: %v", relativePath, err)
	}
	return path
}
