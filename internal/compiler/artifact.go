package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ArtifactPrefix starts the name of every temporary module file.
const ArtifactPrefix = ".temp-component-"

// Artifacts creates and tracks the temporary module files a load needs, so
// that anything left behind by an interrupted load can be swept on exit.
type Artifacts struct {
	dir  string
	mu   sync.Mutex
	live map[string]struct{}
}

// NewArtifacts returns a registry writing into dir.
func NewArtifacts(dir string) *Artifacts {
	return &Artifacts{
		dir:  dir,
		live: make(map[string]struct{}),
	}
}

// Dir returns the directory artifacts are written to.
func (a *Artifacts) Dir() string { return a.dir }

// Create writes code to a uniquely named file and tracks it.
func (a *Artifacts) Create(code []byte) (string, error) {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	path, err := filepath.Abs(filepath.Join(a.dir, ArtifactPrefix+uuid.NewString()+".js"))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, code, 0o600); err != nil {
		return "", fmt.Errorf("failed to write temp module: %w", err)
	}

	a.mu.Lock()
	a.live[path] = struct{}{}
	a.mu.Unlock()

	return path, nil
}

// Remove deletes one artifact and stops tracking it. A file that is already
// gone is not an error.
func (a *Artifacts) Remove(path string) error {
	a.mu.Lock()
	delete(a.live, path)
	a.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Live returns the number of tracked artifacts.
func (a *Artifacts) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Sweep removes every tracked artifact plus any stray artifact file in the
// directory, and returns how many files were removed.
func (a *Artifacts) Sweep() int {
	a.mu.Lock()
	paths := make([]string, 0, len(a.live))
	for p := range a.live {
		paths = append(paths, p)
	}
	a.live = make(map[string]struct{})
	a.mu.Unlock()

	if strays, err := filepath.Glob(filepath.Join(a.dir, ArtifactPrefix+"*.js")); err == nil {
		for _, s := range strays {
			if abs, err := filepath.Abs(s); err == nil {
				paths = append(paths, abs)
			}
		}
	}

	removed := 0
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		if err := os.Remove(p); err == nil {
			removed++
		}
	}
	return removed
}
