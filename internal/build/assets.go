// Package build compiles the site's stylesheets and scripts.
//
// A Builder keeps one freshness map per asset kind (source file name to the
// modification time seen at its last successful build) so repeated passes
// only rebuild files that changed or whose output went missing. Styles build
// sequentially; scripts build concurrently and the pass waits for all of
// them.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bep/godartsass/v2"

	"github.com/conneroisu/jsxsite/internal/errors"
	"github.com/conneroisu/jsxsite/internal/logging"
)

// Options configures a Builder. All paths are absolute.
type Options struct {
	StyleSource  string
	StyleOutput  string
	ScriptSource string
	ScriptOutput string
	// SassBinary is the Dart Sass executable. Empty means "sass" on PATH.
	SassBinary string
}

// Result summarises one build pass.
type Result struct {
	Styles   []string
	Scripts  []string
	Skipped  int
	Duration time.Duration
}

// Built returns the number of rebuilt files.
func (r *Result) Built() int { return len(r.Styles) + len(r.Scripts) }

// Builder runs asset passes. Build must not be called concurrently.
type Builder struct {
	opts   Options
	logger logging.Logger

	styles  *freshness
	scripts *freshness
	writer  *writer

	sassMu sync.Mutex
	sass   *godartsass.Transpiler
}

// New creates a Builder.
func New(opts Options, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Builder{
		opts:    opts,
		logger:  logger.WithComponent("assets"),
		styles:  newFreshness(),
		scripts: newFreshness(),
		writer:  newWriter(),
	}
}

// Build runs one pass: styles first, then scripts. The first failure aborts
// the pass with an asset build error.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{}
	b.logger.Info(ctx, "Starting asset build")

	if err := b.buildStyles(ctx, res); err != nil {
		b.logger.Error(ctx, err, fmt.Sprintf("Asset build failed after %dms", time.Since(start).Milliseconds()))
		return nil, err
	}
	if err := b.buildScripts(ctx, res); err != nil {
		b.logger.Error(ctx, err, fmt.Sprintf("Asset build failed after %dms", time.Since(start).Milliseconds()))
		return nil, err
	}

	res.Duration = time.Since(start)
	b.logger.Info(ctx, fmt.Sprintf("Asset build completed in %dms", res.Duration.Milliseconds()),
		"styles", len(res.Styles), "scripts", len(res.Scripts), "skipped", res.Skipped)

	return res, nil
}

// ClearStyles forgets every style freshness entry.
func (b *Builder) ClearStyles() {
	b.styles.clear()
	b.logger.Info(context.Background(), "Style cache cleared")
}

// ClearScripts forgets every script freshness entry.
func (b *Builder) ClearScripts() {
	b.scripts.clear()
	b.logger.Info(context.Background(), "Script cache cleared")
}

// Close stops the Dart Sass process if one was started.
func (b *Builder) Close() error {
	b.sassMu.Lock()
	defer b.sassMu.Unlock()
	if b.sass == nil {
		return nil
	}
	err := b.sass.Close()
	b.sass = nil
	return err
}

// sources lists regular files directly inside dir whose names end in one of
// exts, sorted by name. A missing dir has no sources.
func sources(dir string, exts ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		for _, ext := range exts {
			if strings.HasSuffix(e.Name(), ext) {
				names = append(names, e.Name())
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func isMinified(name string) bool {
	ext := filepath.Ext(name)
	return strings.HasSuffix(strings.TrimSuffix(name, ext), ".min")
}

// needsBuild reports whether name must be rebuilt and returns the source
// mtime to record afterwards.
func needsBuild(f *freshness, name, in, out string) (bool, int64, error) {
	info, err := os.Stat(in)
	if err != nil {
		return false, 0, err
	}
	mtime := info.ModTime().UnixMilli()

	if seen, ok := f.get(name); ok && seen == mtime {
		if _, err := os.Stat(out); err == nil {
			return false, mtime, nil
		}
	}
	return true, mtime, nil
}

type freshness struct {
	mu    sync.Mutex
	mtime map[string]int64
}

func newFreshness() *freshness {
	return &freshness{mtime: make(map[string]int64)}
}

func (f *freshness) get(name string) (int64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.mtime[name]
	return m, ok
}

func (f *freshness) set(name string, mtime int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mtime[name] = mtime
}

func (f *freshness) clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mtime = make(map[string]int64)
}

func (f *freshness) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.mtime)
}

func assetError(code, path string, err error) error {
	if se, ok := err.(*errors.SiteError); ok && se.Type == errors.ErrorTypeAssetBuild {
		return se
	}
	return errors.NewAssetBuildError(code, path, err)
}
