// Package testutil holds fixtures and fakes shared by package tests.
package testutil

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/d1childress/ccmanager/internal/common"
)

// TestHelper provides common test utilities
type TestHelper struct {
	t *testing.T
}

// NewTestHelper creates a new test helper
func NewTestHelper(t *testing.T) *TestHelper {
	return &TestHelper{t: t}
}

// Home creates an isolated application home and points CCMANAGER_HOME at it
func (h *TestHelper) Home() string {
	dir := filepath.Join(h.t.TempDir(), "home")
	if err := os.MkdirAll(dir, common.DirPermissionSecure); err != nil {
		h.t.Fatalf("Failed to create home: %v", err)
	}
	h.t.Setenv(common.HomeEnvVar, dir)
	return dir
}

// WriteFile writes content to a file in the given directory
func (h *TestHelper) WriteFile(dir, filename, content string) string {
	path := filepath.Join(dir, filename)

	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal); err != nil {
		h.t.Fatalf("Failed to create directories: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), common.FilePermissionSecure); err != nil {
		h.t.Fatalf("Failed to write file %s: %v", path, err)
	}

	return path
}

// CaptureOutput captures stdout and stderr during function execution
func (h *TestHelper) CaptureOutput(f func()) (stdout, stderr string) {
	oldStdout := os.Stdout
	rOut, wOut, _ := os.Pipe()
	os.Stdout = wOut

	oldStderr := os.Stderr
	rErr, wErr, _ := os.Pipe()
	os.Stderr = wErr

	f()

	wOut.Close()
	os.Stdout = oldStdout
	outBytes, _ := io.ReadAll(rOut)

	wErr.Close()
	os.Stderr = oldStderr
	errBytes, _ := io.ReadAll(rErr)

	return string(outBytes), string(errBytes)
}
