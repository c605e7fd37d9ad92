package build

import (
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// writer skips rewriting outputs whose content hash has not changed since its
// last write.
type writer struct {
	mu     sync.Mutex
	hashes map[string]uint64
}

func newWriter() *writer {
	return &writer{hashes: make(map[string]uint64)}
}

// write stores content at path and reports whether the file was written.
func (w *writer) write(path string, content []byte) (bool, error) {
	sum := xxhash.Sum64(content)

	w.mu.Lock()
	prev, ok := w.hashes[path]
	w.mu.Unlock()

	if ok && prev == sum {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, err
	}

	w.mu.Lock()
	w.hashes[path] = sum
	w.mu.Unlock()
	return true, nil
}

// WriteIfChanged writes content to path unless the file already holds the
// same bytes. It reports whether a write happened.
func WriteIfChanged(path string, content []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && xxhash.Sum64(existing) == xxhash.Sum64(content) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	return true, os.WriteFile(path, content, 0o644)
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
