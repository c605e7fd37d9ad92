// Package deps records which files each compiled template imported and
// derives a freshness fingerprint from their modification times.
//
// A Tracker is not safe for concurrent use; the owning site serialises
// access.
package deps

import (
	"os"
	"path/filepath"
	"strings"
)

// Tracker maps a template path to the ordered set of files it transitively
// imported during its last successful bundling.
type Tracker struct {
	root string
	deps map[string][]string
	stat func(string) (os.FileInfo, error)
}

// NewTracker creates a tracker. Relative paths handed to Record and
// Fingerprint are resolved against root.
func NewTracker(root string) *Tracker {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Tracker{
		root: root,
		deps: make(map[string][]string),
		stat: os.Stat,
	}
}

func (t *Tracker) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(t.root, path)
}

// isNamespaced reports whether path is a bundler pseudo-path such as
// "<stdin>" or "ns:path" rather than a file on disk.
func isNamespaced(path string) bool {
	if strings.HasPrefix(path, "<") {
		return true
	}
	i := strings.Index(path, ":")
	if i <= 0 {
		return false
	}
	// keep windows drive letters
	return !(i == 1 && filepath.VolumeName(path) != "")
}

// Record replaces the dependency set for path. Entries that are namespaced,
// missing, directories, or duplicates are dropped; order is preserved.
func (t *Tracker) Record(path string, imported []string) {
	key := t.abs(path)
	seen := make(map[string]struct{}, len(imported))
	set := make([]string, 0, len(imported))

	for _, dep := range imported {
		if dep == "" || isNamespaced(dep) {
			continue
		}
		abs := t.abs(dep)
		if _, dup := seen[abs]; dup {
			continue
		}
		info, err := t.stat(abs)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		seen[abs] = struct{}{}
		set = append(set, abs)
	}

	t.deps[key] = set
}

// Dependencies returns a copy of the recorded set for path.
func (t *Tracker) Dependencies(path string) []string {
	set := t.deps[t.abs(path)]
	out := make([]string, len(set))
	copy(out, set)
	return out
}

// Dependents returns every recorded template whose set contains path.
func (t *Tracker) Dependents(path string) []string {
	target := t.abs(path)
	var out []string
	for owner, set := range t.deps {
		for _, dep := range set {
			if dep == target {
				out = append(out, owner)
				break
			}
		}
	}
	return out
}

// Forget drops the set recorded for path.
func (t *Tracker) Forget(path string) {
	delete(t.deps, t.abs(path))
}

// Clear drops every recorded set.
func (t *Tracker) Clear() {
	t.deps = make(map[string][]string)
}

// Len returns the number of templates with a recorded set.
func (t *Tracker) Len() int { return len(t.deps) }

// Fingerprint returns the newest modification time, in Unix milliseconds,
// of path and everything it transitively depends on. A missing file is 0
// and its recorded set is not walked; a revisited file contributes 0 so
// cycles terminate.
func (t *Tracker) Fingerprint(path string) int64 {
	return t.fingerprint(t.abs(path), make(map[string]struct{}))
}

func (t *Tracker) fingerprint(path string, visited map[string]struct{}) int64 {
	if _, ok := visited[path]; ok {
		return 0
	}
	visited[path] = struct{}{}

	info, err := t.stat(path)
	if err != nil {
		return 0
	}
	latest := info.ModTime().UnixMilli()

	for _, dep := range t.deps[path] {
		if fp := t.fingerprint(dep, visited); fp > latest {
			latest = fp
		}
	}

	return latest
}
