// Package testutils holds fixtures for tests that need a jsxsite project on
// disk.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/jsxsite/internal/config"
)

// CreateTempProject creates an empty project with the default source layout.
func CreateTempProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	for _, dir := range []string{
		config.DefaultInputDir,
		config.DefaultDataDir,
		config.DefaultStylesSource,
		config.DefaultScriptsSource,
		"src/components",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	return root
}

// WriteFile writes content to root/rel, creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// ReadFile returns the content of root/rel.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

// CreateTestPage writes a page under the default pages directory.
func CreateTestPage(t *testing.T, root, name, content string) string {
	t.Helper()
	return WriteFile(t, root, config.DefaultInputDir+"/"+name+".jsx", content)
}

// CreateTestConfig returns the default configuration rooted at root.
func CreateTestConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.Root = root
	return cfg
}

// Touch moves the mtime of path forward by d so that a change is visible at
// any filesystem timestamp resolution.
func Touch(t *testing.T, path string, d time.Duration) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	future := info.ModTime().Add(d)
	require.NoError(t, os.Chtimes(path, future, future))
}

// WaitForFileChange waits for a file to be modified (useful for testing file watchers)
func WaitForFileChange(
	t *testing.T,
	filePath string,
	originalModTime time.Time,
	timeout time.Duration,
) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		info, err := os.Stat(filePath)
		if err == nil && info.ModTime().After(originalModTime) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("File %s was not modified within %v", filePath, timeout)
}
